package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"":        KindRemote,
		"openai":  KindRemote,
		"Remote":  KindRemote,
		"local":   KindLocal,
		"whisper": KindLocal,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("azure")
	assert.Error(t, err)
	assert.Equal(t, "local", KindLocal.String())
}

func TestParseModelSize(t *testing.T) {
	m, err := ParseModelSize("")
	require.NoError(t, err)
	assert.Equal(t, ModelSmall, m)

	m, err = ParseModelSize("MEDIUM")
	require.NoError(t, err)
	assert.Equal(t, ModelMedium, m)

	_, err = ParseModelSize("huge")
	assert.Error(t, err)
}

func TestParseDevice(t *testing.T) {
	d, err := ParseDevice("mps")
	require.NoError(t, err)
	assert.Equal(t, DeviceGPU, d)

	d, err = ParseDevice("")
	require.NoError(t, err)
	assert.Equal(t, DeviceAuto, d)

	_, err = ParseDevice("tpu")
	assert.Error(t, err)
}
