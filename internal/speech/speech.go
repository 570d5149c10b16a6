package speech

import (
	"context"
	"errors"
	"io"
)

// ErrUnsupported signals that no speech capability is available in this
// deployment. Callers degrade to manual text entry.
var ErrUnsupported = errors.New("speech capability unsupported")

type Result struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// Transcriber converts an audio stream to text. Implementations wrap an
// external speech service; none ships with this repository.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, language string) (Result, error)
}

// Speaker reads text aloud in the given language.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}
