package tubescribe

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/tubescribe/internal/errors"
	"github.com/sjzar/tubescribe/internal/speech"
)

func TestJobFlags(t *testing.T) {
	f := jobFlags{
		whisper:         "medium",
		chunkLength:     30 * time.Second,
		forceTranscribe: true,
		start:           "1:30",
		end:             "600",
	}
	job, err := f.job([]string{"https://youtu.be/abc", "talk"}, speech.KindRemote)
	require.NoError(t, err)
	assert.Equal(t, "talk", job.BaseName)
	assert.Equal(t, speech.KindLocal, job.Backend)
	assert.Equal(t, speech.ModelMedium, job.Model)
	assert.Equal(t, 30*time.Second, job.ChunkLength)
	assert.Equal(t, 90*time.Second, job.Start)
	assert.Equal(t, 10*time.Minute, job.End)
	assert.True(t, job.Force)
	assert.False(t, job.ForceFetch)
}

func TestJobFlagsDefaults(t *testing.T) {
	var f jobFlags
	job, err := f.job([]string{"talk.wav"}, speech.KindLocal)
	require.NoError(t, err)
	assert.Equal(t, speech.KindLocal, job.Backend)
	assert.Empty(t, job.BaseName)

	f.backend = "remote"
	job, err = f.job([]string{"talk.wav"}, speech.KindLocal)
	require.NoError(t, err)
	assert.Equal(t, speech.KindRemote, job.Backend)
}

func TestJobFlagsRejects(t *testing.T) {
	for _, f := range []jobFlags{
		{backend: "cloud"},
		{whisper: "huge"},
		{start: "soon"},
		{end: "1:99"},
	} {
		_, err := f.job([]string{"talk.wav"}, speech.KindRemote)
		assert.True(t, errors.Is(err, errors.ErrInput), "%+v", f)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--work-dir", t.TempDir(), "--yes"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTranscribeRejectsURL(t *testing.T) {
	_, err := execute(t, "transcribe", "https://youtu.be/abc")
	assert.True(t, errors.Is(err, errors.ErrInput))
}

func TestSearchEmptyIndex(t *testing.T) {
	out, err := execute(t, "search", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 0 hits")
}
