package speech

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/blob"
	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSynth struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (s *countingSynth) Synthesize(ctx context.Context, text string, lang advisory.Language) (Audio, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	if s.err != nil {
		return Audio{}, s.err
	}
	return Audio{MIMEType: "audio/wav", Data: EncodeWAV([]byte(text), DefaultPCM)}, nil
}

func TestDigest(t *testing.T) {
	d := Digest(advisory.English, "Delay irrigation.")
	assert.True(t, ValidDigest(d))
	assert.Equal(t, d, Digest(advisory.English, "Delay irrigation."))
	assert.NotEqual(t, d, Digest(advisory.Hindi, "Delay irrigation."))
	assert.NotEqual(t, d, Digest(advisory.English, "Consider irrigation."))

	assert.False(t, ValidDigest("../users"))
	assert.False(t, ValidDigest(""))
}

func TestCache_SynthesizesOnce(t *testing.T) {
	ctx := context.Background()
	synth := &countingSynth{}
	c := NewCache(blob.NewMemoryStore(), synth)

	d1, err := c.Ensure(ctx, "Use neem oil.", advisory.Telugu)
	require.NoError(t, err)
	d2, err := c.Ensure(ctx, "Use neem oil.", advisory.Telugu)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Equal(t, int32(1), synth.calls.Load())

	audio, err := c.Load(ctx, d1)
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", audio.MIMEType)
	assert.Equal(t, "RIFF", string(audio.Data[:4]))
}

func TestCache_ConcurrentMissesShareSynthesis(t *testing.T) {
	synth := &countingSynth{delay: 50 * time.Millisecond}
	c := NewCache(blob.NewMemoryStore(), synth)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Ensure(context.Background(), "Consider irrigation.", advisory.English)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), synth.calls.Load())
}

func TestCache_SynthesisFailureNotCached(t *testing.T) {
	ctx := context.Background()
	synth := &countingSynth{err: fmt.Errorf("%w: quota", domain.ErrExternalService)}
	c := NewCache(blob.NewMemoryStore(), synth)

	_, err := c.Ensure(ctx, "hello", advisory.English)
	assert.ErrorIs(t, err, domain.ErrExternalService)

	_, err = c.Load(ctx, Digest(advisory.English, "hello"))
	assert.ErrorIs(t, err, ErrAudioNotFound)

	synth.err = nil
	_, err = c.Ensure(ctx, "hello", advisory.English)
	require.NoError(t, err)
	assert.Equal(t, int32(2), synth.calls.Load())
}

func TestCache_LoadRejectsBadDigest(t *testing.T) {
	_, err := NewCache(blob.NewMemoryStore(), &countingSynth{}).Load(context.Background(), "users")
	assert.ErrorIs(t, err, ErrAudioNotFound)
}

func TestCache_HandleJob(t *testing.T) {
	ctx := context.Background()
	synth := &countingSynth{}
	c := NewCache(blob.NewMemoryStore(), synth)

	job := &jobs.SynthesizeSpeechJob{JobID: "j1", Text: "Consider irrigation.", Language: "Hindi"}
	require.NoError(t, c.HandleJob(ctx, job))
	assert.Equal(t, Digest(advisory.Hindi, "Consider irrigation."), job.Digest)

	_, err := c.Load(ctx, job.Digest)
	require.NoError(t, err)

	fallback := &jobs.SynthesizeSpeechJob{JobID: "j2", Text: "hi", Language: ""}
	require.NoError(t, c.HandleJob(ctx, fallback))
	assert.Equal(t, Digest(advisory.English, "hi"), fallback.Digest)
}
