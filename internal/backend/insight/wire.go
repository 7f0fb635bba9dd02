package insight

import "github.com/ekisa-team/swapface/internal/face"

type prepareRequest struct {
	Analysis string `json:"analysis,omitempty"`
	DetSize  int    `json:"det_size,omitempty"`
	CtxID    int    `json:"ctx_id"`
}

type prepareResponse struct {
	Ready     bool     `json:"ready"`
	Providers []string `json:"providers,omitempty"`
}

type detectResponse struct {
	Faces []face.Face `json:"faces"`
}

type loadRequest struct {
	Path string `json:"path"`
}

type loadResponse struct {
	Handle string `json:"handle"`
}

type unloadRequest struct {
	Handle string `json:"handle"`
}

type swapRequest struct {
	Handle    string    `json:"handle"`
	Target    face.Face `json:"target"`
	Source    face.Face `json:"source"`
	PasteBack bool      `json:"paste_back"`
}
