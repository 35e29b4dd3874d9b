package whispercpp

import (
	"errors"

	"github.com/sjzar/tubescribe/internal/speech"
)

// ErrNotCompiled is the cause reported when the binary lacks whisper.cpp.
var ErrNotCompiled = errors.New("built without whisper.cpp (rebuild with CGO_ENABLED=1 -tags whisper)")

// Config describes how to initialise the whisper.cpp backend.
type Config struct {
	Model    speech.ModelSize
	ModelDir string
	// ModelPath overrides Model/ModelDir with an explicit ggml file.
	ModelPath string
	Device    speech.Device
	Options   speech.Options
}
