package speech

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	// DefaultTTSModel is the Gemini speech generation model.
	DefaultTTSModel = "gemini-2.5-flash-preview-tts"

	// DefaultSTTModel is the Gemini model used to transcribe audio.
	DefaultSTTModel = "gemini-2.5-flash"

	// DefaultVoice is the prebuilt voice used for answers.
	DefaultVoice = "Kore"

	noSpeechMarker     = "NO_SPEECH"
	unrecognizedMarker = "UNRECOGNIZED"
)

// Limits bound one voice capture.
type Limits struct {
	// ListenTimeout caps how long recognition may take.
	ListenTimeout time.Duration
	// PhraseLimit caps the length of audio considered; longer WAV input is cut.
	PhraseLimit time.Duration
	// MaxBytes caps the upload size.
	MaxBytes int64
}

// GeminiTranscriber is the Transcriber backed by Gemini audio understanding.
type GeminiTranscriber struct {
	client *genai.Client
	model  string
	limits Limits
	log    zerolog.Logger
}

// NewGeminiTranscriber creates a transcriber.
func NewGeminiTranscriber(client *genai.Client, model string, limits Limits, log zerolog.Logger) *GeminiTranscriber {
	if model == "" {
		model = DefaultSTTModel
	}
	return &GeminiTranscriber{client: client, model: model, limits: limits, log: log}
}

func transcriptionPrompt(lang advisory.Language) string {
	return "Transcribe the farmer's speech in this recording exactly as spoken. " +
		"The expected language is " + lang.Code() + ". Reply with the transcript only. " +
		"If the recording contains no speech, reply " + noSpeechMarker + ". " +
		"If there is speech you cannot understand, reply " + unrecognizedMarker + "."
}

// Transcribe implements Transcriber.
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audio Audio, lang advisory.Language) (string, error) {
	if len(audio.Data) == 0 {
		return "", ErrNoSpeech
	}
	if t.limits.MaxBytes > 0 && int64(len(audio.Data)) > t.limits.MaxBytes {
		return "", fmt.Errorf("Transcribe: %w: recording exceeds %d bytes", domain.ErrValidation, t.limits.MaxBytes)
	}
	if trimmed, cut := trimWAV(audio.Data, t.limits.PhraseLimit); cut {
		t.log.Debug().Dur("phrase_limit", t.limits.PhraseLimit).Msg("recording cut to phrase limit")
		audio.Data = trimmed
	}

	if t.limits.ListenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.limits.ListenTimeout)
		defer cancel()
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: transcriptionPrompt(lang)},
			{InlineData: &genai.Blob{MIMEType: audio.MIMEType, Data: audio.Data}},
		},
	}}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("Transcribe: %w: %v", domain.ErrExternalService, err)
	}

	text := strings.TrimSpace(resp.Text())
	switch {
	case text == "" || strings.Contains(text, noSpeechMarker):
		return "", ErrNoSpeech
	case strings.Contains(text, unrecognizedMarker):
		return "", ErrUnrecognized
	}
	return text, nil
}

// GeminiSynthesizer is the Synthesizer backed by Gemini speech generation.
type GeminiSynthesizer struct {
	client *genai.Client
	model  string
	voice  string
}

// NewGeminiSynthesizer creates a synthesizer.
func NewGeminiSynthesizer(client *genai.Client, model, voice string) *GeminiSynthesizer {
	if model == "" {
		model = DefaultTTSModel
	}
	if voice == "" {
		voice = DefaultVoice
	}
	return &GeminiSynthesizer{client: client, model: model, voice: voice}
}

// Synthesize implements Synthesizer. The result is a WAV clip.
func (s *GeminiSynthesizer) Synthesize(ctx context.Context, text string, lang advisory.Language) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, fmt.Errorf("Synthesize: %w: text is required", domain.ErrValidation)
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			LanguageCode: lang.Code(),
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.voice},
			},
		},
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: text}}}}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return Audio{}, fmt.Errorf("Synthesize: generate audio: %w: %v", domain.ErrExternalService, err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return Audio{
				MIMEType: "audio/wav",
				Data:     EncodeWAV(part.InlineData.Data, pcmFormat(part.InlineData.MIMEType)),
			}, nil
		}
	}
	return Audio{}, fmt.Errorf("Synthesize: %w: no audio in response", domain.ErrExternalService)
}

// pcmFormat reads the sample rate from a MIME type such as
// "audio/L16;codec=pcm;rate=24000".
func pcmFormat(mimeType string) PCM {
	f := DefaultPCM
	for _, param := range strings.Split(mimeType, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && k == "rate" {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				f.SampleRate = rate
			}
		}
	}
	return f
}

var (
	_ Transcriber = (*GeminiTranscriber)(nil)
	_ Synthesizer = (*GeminiSynthesizer)(nil)
)
