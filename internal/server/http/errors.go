package http

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/swapface/internal/ingest"
	"github.com/ekisa-team/swapface/internal/service"
)

// swapError maps a pipeline failure to an HTTP error whose detail is safe to
// show to the caller.
func swapError(err error) error {
	se := service.AsError(err)

	switch se.Kind {
	case service.KindBadInput:
		if ingest.KindOf(se) == ingest.KindTooLarge {
			return huma.NewError(http.StatusRequestEntityTooLarge, se.Message)
		}
		return huma.Error400BadRequest(se.Message)
	case service.KindFaceIndexOutOfRange:
		return huma.Error400BadRequest(se.Message)
	case service.KindServiceUnavailable, service.KindUpstreamModelCorrupt:
		return huma.Error503ServiceUnavailable(se.Message)
	}
	return huma.Error500InternalServerError(se.Message)
}
