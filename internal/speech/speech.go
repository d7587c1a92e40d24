// Package speech turns farmer voice input into text and advisory answers
// into playable audio.
package speech

import (
	"context"
	"fmt"

	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/domain"
)

var (
	// ErrNoSpeech is returned when the recording holds no speech.
	ErrNoSpeech = fmt.Errorf("%w: no voice detected", domain.ErrValidation)

	// ErrUnrecognized is returned when speech was heard but not understood.
	ErrUnrecognized = fmt.Errorf("%w: could not recognize speech", domain.ErrValidation)

	// ErrTimeout is returned when recognition did not finish within the listen timeout.
	ErrTimeout = fmt.Errorf("%w: speech recognition timed out", domain.ErrExternalService)
)

// Audio is a playable clip.
type Audio struct {
	MIMEType string
	Data     []byte
}

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio, lang advisory.Language) (string, error)
}

// Synthesizer converts text to speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, lang advisory.Language) (Audio, error)
}
