package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"

	"github.com/dvloznov/agritool/internal/advisory"
	"github.com/dvloznov/agritool/internal/blob"
	"github.com/dvloznov/agritool/internal/domain"
	"golang.org/x/sync/singleflight"
)

// AudioDir is the blob prefix for cached clips.
const AudioDir = "audio"

// ErrAudioNotFound is returned for digests with no cached clip.
var ErrAudioNotFound = errors.New("speech: audio not found")

// Digest is the content address of a spoken answer.
func Digest(lang advisory.Language, text string) string {
	sum := sha256.Sum256([]byte(lang.Code() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// ValidDigest reports whether s looks like a Digest result.
func ValidDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func audioKey(digest string) string {
	return path.Join(AudioDir, digest+".wav")
}

// Cache stores synthesized clips in the blob store by digest, so the same
// answer is only ever synthesized once.
type Cache struct {
	blobs blob.Store
	synth Synthesizer
	group singleflight.Group
}

// NewCache creates a cache in front of synth.
func NewCache(blobs blob.Store, synth Synthesizer) *Cache {
	return &Cache{blobs: blobs, synth: synth}
}

// Ensure makes sure a clip for (lang, text) exists and returns its digest.
// Concurrent calls for the same digest share one synthesis.
func (c *Cache) Ensure(ctx context.Context, text string, lang advisory.Language) (string, error) {
	digest := Digest(lang, text)
	_, err, _ := c.group.Do(digest, func() (interface{}, error) {
		if _, err := c.blobs.Get(ctx, audioKey(digest)); err == nil {
			return nil, nil
		} else if !errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("read cached audio: %w: %v", domain.ErrPersistence, err)
		}

		audio, err := c.synth.Synthesize(ctx, text, lang)
		if err != nil {
			return nil, err
		}
		if err := c.blobs.Put(ctx, audioKey(digest), audio.Data, audio.MIMEType); err != nil {
			return nil, fmt.Errorf("write cached audio: %w: %v", domain.ErrPersistence, err)
		}
		return nil, nil
	})
	if err != nil {
		return "", fmt.Errorf("Ensure: %w", err)
	}
	return digest, nil
}

// Load returns the cached clip for digest.
func (c *Cache) Load(ctx context.Context, digest string) (Audio, error) {
	if !ValidDigest(digest) {
		return Audio{}, ErrAudioNotFound
	}
	data, err := c.blobs.Get(ctx, audioKey(digest))
	if errors.Is(err, blob.ErrNotFound) {
		return Audio{}, ErrAudioNotFound
	}
	if err != nil {
		return Audio{}, fmt.Errorf("Load: %w: %v", domain.ErrPersistence, err)
	}
	return Audio{MIMEType: "audio/wav", Data: data}, nil
}
