package config

import (
	"errors"
	"reflect"
	"time"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeHuggingFace fetches variants with the Hugging Face CLI.
	SourceTypeHuggingFace SourceType = "huggingface"

	// SourceTypeHTTP fetches variants with a plain HTTP GET.
	SourceTypeHTTP SourceType = "http"
)

// ValidatorType selects how model artifacts are checked for integrity.
type ValidatorType string

const (
	// ValidatorStructural walks the ONNX protobuf envelope without a runtime.
	ValidatorStructural ValidatorType = "structural"

	// ValidatorOnnxRuntime loads the graph with ONNX Runtime.
	ValidatorOnnxRuntime ValidatorType = "onnxruntime"
)

// Config holds the main configuration for the application.
type Config struct {
	Version string       `json:"version"          yaml:"version"`
	Server  ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`
	Models  ModelsConfig `json:"models"           yaml:"models"`
	Engine  EngineConfig `json:"engine"           yaml:"engine"`
	Ingest  IngestConfig `json:"ingest,omitempty" yaml:"ingest,omitempty"`
	Queue   QueueConfig  `json:"queue,omitempty"  yaml:"queue,omitempty"`
}

// ServerConfig holds HTTP front configuration.
type ServerConfig struct {
	HTTPPort    int      `json:"http_port"              yaml:"http_port"`
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
	RateLimit   float64  `json:"rate_limit"             yaml:"rate_limit"` // requests per second per IP, 0 disables
}

// ModelsConfig describes the swapper variants and where they live on disk.
type ModelsConfig struct {
	Variants   []string      `json:"variants"              yaml:"variants"` // tried in order
	MaxRetries int           `json:"max_retries"           yaml:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"           yaml:"retry_delay"`
	WorkDir    string        `json:"work_dir"              yaml:"work_dir"`
	SearchDirs []string      `json:"search_dirs"           yaml:"search_dirs"`
	CacheDir   string        `json:"cache_dir"             yaml:"cache_dir"`
	MinBytes   int64         `json:"min_bytes"             yaml:"min_bytes"`
	Validator  ValidatorType `json:"validator"             yaml:"validator"`
	Source     SourceConfig  `json:"source"                yaml:"source"`
	OnnxLib    string        `json:"onnx_library,omitempty" yaml:"onnx_library,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
	HTTP        *HTTPSource        `json:"http,omitempty"        yaml:"http,omitempty"`
}

// EngineConfig holds the inference engine configuration.
type EngineConfig struct {
	Provider string        `json:"provider"          yaml:"provider"`
	Analysis string        `json:"analysis"          yaml:"analysis"` // locator model pack name
	DetSize  int           `json:"det_size"          yaml:"det_size"`
	CtxID    int           `json:"ctx_id"            yaml:"ctx_id"`
	Timeout  time.Duration `json:"timeout"           yaml:"timeout"`
	Sidecar  SidecarConfig `json:"sidecar,omitempty" yaml:"sidecar,omitempty"`
}

// SidecarConfig describes the inference server process.
type SidecarConfig struct {
	URL          string            `json:"url,omitempty"      yaml:"url,omitempty"` // use an already running server
	BinPath      string            `json:"bin_path,omitempty" yaml:"bin_path,omitempty"`
	Args         []string          `json:"args,omitempty"     yaml:"args,omitempty"`
	Env          map[string]string `json:"env,omitempty"      yaml:"env,omitempty"`
	Port         int               `json:"port"               yaml:"port"`
	ReadyTimeout time.Duration     `json:"ready_timeout"      yaml:"ready_timeout"`
}

// IngestConfig bounds remote image downloads.
type IngestConfig struct {
	Timeout      time.Duration `json:"timeout"       yaml:"timeout"`
	MaxBytes     int64         `json:"max_bytes"     yaml:"max_bytes"`
	MaxDimension int           `json:"max_dimension" yaml:"max_dimension"`
	MaxPixels    int64         `json:"max_pixels"    yaml:"max_pixels"`
	UserAgent    string        `json:"user_agent"    yaml:"user_agent"`
}

// QueueConfig configures the async job queue. An empty RedisAddr disables it.
type QueueConfig struct {
	RedisAddr   string        `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	Concurrency int           `json:"concurrency"          yaml:"concurrency"`
	Retention   time.Duration `json:"retention"            yaml:"retention"`
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo     string `json:"repo"                yaml:"repo"`
	Revision string `json:"revision,omitempty"  yaml:"revision,omitempty"`
	RepoType string `json:"repo_type,omitempty" yaml:"repo_type,omitempty"`
	Token    string `json:"token,omitempty"     yaml:"token,omitempty"`
	UseCLI   bool   `json:"use_cli,omitempty"   yaml:"use_cli,omitempty"` // shell out to `hf download`
	BinPath  string `json:"bin_path,omitempty"  yaml:"bin_path,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// HTTPSource downloads variants from BaseURL/<variant>.
type HTTPSource struct {
	BaseURL string `json:"base_url"        yaml:"base_url"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Type returns the HTTP source type.
func (h HTTPSource) Type() SourceType {
	return SourceTypeHTTP
}

// GetSource returns the active source for the models.
func (m *ModelsConfig) GetSource() (ModelSource, error) {
	if m.Source.HuggingFace != nil {
		return *m.Source.HuggingFace, nil
	}
	if m.Source.HTTP != nil {
		return *m.Source.HTTP, nil
	}

	return nil, errors.New("no source configured for models")
}

// EnginesChanged reports whether a reload changed anything that requires
// the loaded engines to be rebuilt.
func EnginesChanged(prev, next *Config) bool {
	if prev == nil || next == nil {
		return prev != next
	}
	return !reflect.DeepEqual(prev.Models, next.Models) || !reflect.DeepEqual(prev.Engine, next.Engine)
}
