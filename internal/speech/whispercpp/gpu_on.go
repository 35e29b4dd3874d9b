//go:build whisper_gpu

package whispercpp

// Set when libwhisper is linked with CUDA or Metal.
const gpuBuilt = true
