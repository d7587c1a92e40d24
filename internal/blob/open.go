package blob

import (
	"context"
	"fmt"
)

// Open returns the store for backend "local" (rooted at dir) or "gcs"
// (bucket and prefix). The returned close func releases the store.
func Open(ctx context.Context, backend, dir, bucket, prefix string) (Store, func() error, error) {
	switch backend {
	case "local":
		s, err := NewLocalStore(dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	case "gcs":
		s, err := NewGCSStore(ctx, bucket, prefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("blob: unknown backend %q", backend)
	}
}
