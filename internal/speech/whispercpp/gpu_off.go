//go:build !whisper_gpu

package whispercpp

const gpuBuilt = false
