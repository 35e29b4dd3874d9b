package whispercpp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sjzar/tubescribe/internal/speech"
)

func TestSelectDevice(t *testing.T) {
	p := SelectDevice(speech.DeviceAuto, false, 0)
	assert.Equal(t, speech.DeviceCPU, p.Device)
	assert.Positive(t, p.Threads)

	p = SelectDevice(speech.DeviceAuto, true, 0)
	assert.Equal(t, speech.DeviceGPU, p.Device)
	assert.LessOrEqual(t, p.Threads, 4)

	p = SelectDevice(speech.DeviceGPU, false, 3)
	assert.Equal(t, speech.DeviceCPU, p.Device)
	assert.Equal(t, 3, p.Threads)

	p = SelectDevice(speech.DeviceCPU, false, 2)
	assert.Equal(t, Placement{Device: speech.DeviceCPU, Threads: 2}, p)
}
