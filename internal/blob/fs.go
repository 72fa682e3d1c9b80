package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSStore serves files below a root directory. Used for local development.
type FSStore struct {
	root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) Open(ctx context.Context, key string) (*Object, error) {
	if strings.Contains(key, "..") {
		return nil, ErrNotFound
	}
	// rooted clean keeps the join below s.root
	p := filepath.Join(s.root, filepath.Clean("/"+filepath.FromSlash(key)))

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}
	return &Object{
		Body:          f,
		ContentLength: st.Size(),
		ContentType:   ContentTypeFor(key),
	}, nil
}
