package blob

import (
	"context"
	"errors"
	"net/url"
	"path"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("blob: object not found")

// Store provides whole-object reads and writes for the record files.
// Keys are slash-separated relative paths such as "profiles/ravi.json".
// This interface enables swapping the local directory for a bucket and
// mocking storage in tests.
type Store interface {
	// Get returns the full contents stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the object under key with data.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// List returns the keys that start with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// UserKey builds the per-user record key "<dir>/<escaped username>.json".
// Usernames are case-sensitive free text, so they are path-escaped to keep
// one user's record from addressing another's.
func UserKey(dir, username string) string {
	return path.Join(dir, url.PathEscape(username)+".json")
}

// UsernameFromKey is the inverse of UserKey.
func UsernameFromKey(key string) (string, bool) {
	base := path.Base(key)
	if path.Ext(base) != ".json" {
		return "", false
	}
	name, err := url.PathUnescape(base[:len(base)-len(".json")])
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}
