package envvar

const (
	// SwapfaceEnv is the environment variable used to determine the environment
	SwapfaceEnv = "SWAPFACE_ENV"

	// SwapfaceServerHTTPPort is the environment variable used to determine the HTTP port
	SwapfaceServerHTTPPort = "SWAPFACE_SERVER_HTTP_PORT"

	// SwapfaceModelsPath overrides the canonical model cache directory
	SwapfaceModelsPath = "SWAPFACE_MODELS_PATH"

	// SwapfaceRedisAddr is the Redis address used by the async job queue
	SwapfaceRedisAddr = "SWAPFACE_REDIS_ADDR"

	// SwapfaceHFToken is the Hugging Face token used when fetching model variants
	SwapfaceHFToken = "SWAPFACE_HF_TOKEN"

	// SwapfaceOnnxRuntimeLib points at the ONNX Runtime shared library
	SwapfaceOnnxRuntimeLib = "SWAPFACE_ONNXRUNTIME_LIB"
)
