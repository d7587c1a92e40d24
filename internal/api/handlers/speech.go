package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/agritool/internal/api/middleware"
	"github.com/dvloznov/agritool/internal/jobs"
	"github.com/dvloznov/agritool/internal/speech"
	"github.com/rs/zerolog"
)

// SpeechHandler handles voice input and spoken answers.
type SpeechHandler struct {
	transcriber speech.Transcriber
	audio       AudioSource
	jobs        jobs.JobStore
	maxBytes    int64
	log         zerolog.Logger
}

// NewSpeechHandler creates a new speech handler. Recordings larger than
// maxBytes are rejected.
func NewSpeechHandler(transcriber speech.Transcriber, audio AudioSource, store jobs.JobStore, maxBytes int64, log zerolog.Logger) *SpeechHandler {
	return &SpeechHandler{
		transcriber: transcriber,
		audio:       audio,
		jobs:        store,
		maxBytes:    maxBytes,
		log:         log,
	}
}

// Transcribe handles POST /api/speech/transcribe with the raw recording as
// the body and its MIME type as Content-Type.
func (h *SpeechHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := middleware.SessionFromContext(ctx)

	body := r.Body
	if h.maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Recording is too long")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Could not read recording")
		return
	}
	if len(data) == 0 {
		middleware.WriteDomainError(w, speech.ErrNoSpeech)
		return
	}

	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream") {
		mimeType = "audio/wav"
	}

	text, err := h.transcriber.Transcribe(ctx, speech.Audio{MIMEType: mimeType, Data: data}, st.Language)
	if err != nil {
		fail(w, h.log, err, "Transcription failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"text": text})
}

// ListJobs handles GET /api/speech/jobs. Only the caller's jobs are listed;
// status, limit and offset narrow the result.
func (h *SpeechHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := middleware.SessionFromContext(ctx)

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Username: st.Username,
		Status:   jobs.JobStatus(query.Get("status")),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	list, err := h.jobs.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/speech/jobs/{id}. Users only see their own jobs.
func (h *SpeechHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()
	st := middleware.SessionFromContext(ctx)

	job, err := h.jobs.GetJob(ctx, jobID)
	if err != nil || job.Username != st.Username {
		if err != nil && !errors.Is(err, jobs.ErrJobNotFound) {
			h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		}
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	resp := map[string]interface{}{"job": job}
	if job.Status == jobs.JobStatusCompleted && job.Digest != "" {
		resp["audio_url"] = "/api/speech/audio/" + job.Digest
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// GetAudio handles GET /api/speech/audio/{digest}
func (h *SpeechHandler) GetAudio(w http.ResponseWriter, r *http.Request, digest string) {
	if !speech.ValidDigest(digest) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid audio reference")
		return
	}

	audio, err := h.audio.Load(r.Context(), digest)
	if err != nil {
		if errors.Is(err, speech.ErrAudioNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Audio not found")
			return
		}
		fail(w, h.log, err, "Failed to load audio")
		return
	}

	w.Header().Set("Content-Type", audio.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}
