package whispercpp

import (
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/sjzar/tubescribe/internal/speech"
)

// Placement is the resolved compute device and decoder thread count.
type Placement struct {
	Device  speech.Device
	Threads int
}

// SelectDevice resolves a device preference against what the linked
// whisper.cpp library supports. gpuBuilt reports whether it was compiled with
// a GPU backend. threads <= 0 picks one thread per physical core on CPU.
func SelectDevice(pref speech.Device, gpuBuilt bool, threads int) Placement {
	device := speech.DeviceCPU
	switch pref {
	case speech.DeviceGPU:
		if gpuBuilt {
			device = speech.DeviceGPU
		} else {
			log.Warn().Msg("gpu requested but whisper.cpp was built without gpu support; using cpu")
		}
	case speech.DeviceCPU:
		if gpuBuilt {
			log.Warn().Msg("cpu requested but whisper.cpp offloads to gpu when built with it")
			device = speech.DeviceGPU
		}
	default:
		if gpuBuilt {
			device = speech.DeviceGPU
		}
	}

	if threads <= 0 {
		threads = physicalCores()
		if device == speech.DeviceGPU && threads > 4 {
			// The encoder runs on the gpu; extra cpu threads only add contention.
			threads = 4
		}
	}
	return Placement{Device: device, Threads: threads}
}

func physicalCores() int {
	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
