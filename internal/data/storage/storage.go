package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Download when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Storage is the backing store for data entity artifacts. One object per
// entity id; Upload must publish atomically so a partially written object is
// never visible under its final key.
type Storage interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
}
