// AngelaMos | 2026
// storage.go

package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var ErrOutsideStorage = errors.New("path escapes storage root")

type Storage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

// LocalStorage writes files below root in yyyy/mm buckets and serves them
// from baseURL.
type LocalStorage struct {
	root    string
	baseURL string
	now     func() time.Time
}

func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &LocalStorage{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

func (s *LocalStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := s.now().UTC()
	rel := path.Join(fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()), path.Base(name))

	full, err := s.resolve(rel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create bucket: %w", err)
	}

	//nolint:gosec // G304: path is built from a generated name inside root
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		//nolint:errcheck // cleanup after failed write
		_ = f.Close()
		//nolint:errcheck // cleanup after failed write
		_ = os.Remove(full)
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	return s.baseURL + "/" + rel, nil
}

// Remove deletes a file this storage produced. URLs it does not own are
// ignored since clients may reference external evidence.
func (s *LocalStorage) Remove(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok {
		return nil
	}

	full, err := s.resolve(rel)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}

	return nil
}

func (s *LocalStorage) resolve(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if clean == "/" || strings.Contains(rel, "..") {
		return "", ErrOutsideStorage
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Handler serves stored files under a path-only baseURL. Directory
// listings are refused so stored names cannot be enumerated.
func (s *LocalStorage) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.root))

	return http.StripPrefix(s.baseURL+"/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		full, err := s.resolve(r.URL.Path)
		if err != nil || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
		files.ServeHTTP(w, r)
	}))
}
