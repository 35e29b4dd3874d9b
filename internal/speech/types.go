package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sjzar/tubescribe/internal/audio"
)

// Kind selects the transcription backend of a job.
type Kind int

const (
	KindRemote Kind = iota // hosted speech-to-text API
	KindLocal              // in-process whisper.cpp model
)

func (k Kind) String() string {
	switch k {
	case KindRemote:
		return "remote"
	case KindLocal:
		return "local"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "remote"/"openai"/"api" and "local"/"whisper".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "remote", "openai", "api":
		return KindRemote, nil
	case "local", "whisper", "whispercpp":
		return KindLocal, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", s)
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ModelSize names a local model class.
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

// ModelSizes lists the accepted local model classes, smallest first.
var ModelSizes = []ModelSize{ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLarge}

func ParseModelSize(s string) (ModelSize, error) {
	m := ModelSize(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return ModelSmall, nil
	}
	for _, known := range ModelSizes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown model size %q (want one of tiny, base, small, medium, large)", s)
}

func (m *ModelSize) UnmarshalText(b []byte) error {
	v, err := ParseModelSize(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Device is the compute device preference of the local backend.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceGPU  Device = "gpu"
)

func ParseDevice(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DeviceAuto, nil
	case DeviceAuto, DeviceCPU, DeviceGPU:
		return d, nil
	case "cuda", "metal", "mps":
		return DeviceGPU, nil
	default:
		return "", fmt.Errorf("unknown device %q", s)
	}
}

func (d *Device) UnmarshalText(b []byte) error {
	v, err := ParseDevice(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Options tunes a transcription request.
type Options struct {
	Language string // "" lets the model detect the language
	Prompt   string // optional priming prompt
	Threads  int    // <=0 picks a default
}

// Clip is one segment handed to a backend. Path points at the segment encoded
// as WAV when the store materializes chunk audio.
type Clip struct {
	Index int
	Path  string
	Audio *audio.Buffer
}

// Backend converts a clip into plain text.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, clip Clip) (string, error)
	Close() error
}

// Config describes which backend to open and how.
type Config struct {
	Kind    Kind
	Options Options

	// remote
	APIKey      string
	BaseURL     string
	RemoteModel string
	Timeout     time.Duration

	// local
	Model    ModelSize
	ModelDir string
	Device   Device
}
