// AngelaMos | 2026
// intake_test.go

package evidence

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/portfolio-backend/internal/config"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	zipBytes = append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 64)...)
)

type upload struct {
	name    string
	content []byte
}

func buildForm(t *testing.T, uploads ...upload) *multipart.Form {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Science Fair"))
	for _, u := range uploads {
		part, err := mw.CreateFormFile(FormField, u.name)
		require.NoError(t, err)
		_, err = part.Write(u.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm
}

func newTestIntake(t *testing.T, maxSize int64, maxFiles int) (*Intake, string) {
	t.Helper()

	root := t.TempDir()
	storage, err := NewLocalStorage(root, "/uploads")
	require.NoError(t, err)

	return NewIntake(storage, config.StorageConfig{
		MaxFileSize: maxSize,
		MaxFiles:    maxFiles,
	}), root
}

func countFiles(t *testing.T, root string) int {
	t.Helper()

	n := 0
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestCollectStoresAndClassifies(t *testing.T) {
	intake, root := newTestIntake(t, 1<<20, 5)

	form := buildForm(t,
		upload{name: "award.png", content: pngBytes},
		upload{name: "../../certificate.pdf", content: pdfBytes},
	)

	atts, err := intake.Collect(context.Background(), form)
	require.NoError(t, err)
	require.Len(t, atts, 2)

	assert.Equal(t, KindImage, atts[0].Kind)
	assert.Equal(t, "award.png", atts[0].OriginalName)
	assert.True(t, strings.HasPrefix(atts[0].URL, "/uploads/"))
	assert.Equal(t, int64(len(pngBytes)), atts[0].Size)
	assert.Len(t, atts[0].SHA256, 64)

	assert.Equal(t, KindDocument, atts[1].Kind)
	assert.Equal(t, "certificate.pdf", atts[1].OriginalName)

	assert.Equal(t, 2, countFiles(t, root))
}

func TestCollectRejectsUnsupportedTypeAndRollsBack(t *testing.T) {
	intake, root := newTestIntake(t, 1<<20, 5)

	form := buildForm(t,
		upload{name: "photo.png", content: pngBytes},
		upload{name: "archive.zip", content: zipBytes},
	)

	atts, err := intake.Collect(context.Background(), form)
	require.Error(t, err)
	assert.Nil(t, atts)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
	assert.Equal(t, http.StatusBadRequest, core.ToAppError(err).StatusCode)

	assert.Equal(t, 0, countFiles(t, root))
}

func TestCollectLimits(t *testing.T) {
	t.Run("too many files", func(t *testing.T) {
		intake, _ := newTestIntake(t, 1<<20, 1)
		form := buildForm(t,
			upload{name: "a.png", content: pngBytes},
			upload{name: "b.png", content: pngBytes},
		)

		_, err := intake.Collect(context.Background(), form)
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", core.ToAppError(err).Code)
	})

	t.Run("file too large", func(t *testing.T) {
		intake, root := newTestIntake(t, 16, 3)
		form := buildForm(t, upload{name: "big.pdf", content: pdfBytes})

		_, err := intake.Collect(context.Background(), form)
		require.Error(t, err)
		assert.Contains(t, core.ToAppError(err).Message, "exceeds")
		assert.Equal(t, 0, countFiles(t, root))
	})

	t.Run("no files", func(t *testing.T) {
		intake, _ := newTestIntake(t, 1<<20, 3)
		atts, err := intake.Collect(context.Background(), buildForm(t))
		require.NoError(t, err)
		assert.Empty(t, atts)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		mime string
		kind Kind
		ok   bool
	}{
		{"image/png", KindImage, true},
		{"text/plain; charset=utf-8", KindDocument, true},
		{"VIDEO/MP4", KindVideo, true},
		{"application/zip", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			kind, ok := Classify(tt.mime)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestLocalStorageRemove(t *testing.T) {
	root := t.TempDir()
	storage, err := NewLocalStorage(root, "/uploads/")
	require.NoError(t, err)

	ctx := context.Background()
	url, err := storage.Save(ctx, "file.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, 1, countFiles(t, root))

	require.NoError(t, storage.Remove(ctx, "https://cdn.example.com/elsewhere.png"))
	assert.Equal(t, 1, countFiles(t, root))

	assert.ErrorIs(t, storage.Remove(ctx, "/uploads/../../etc/passwd"), ErrOutsideStorage)

	require.NoError(t, storage.Remove(ctx, url))
	assert.Equal(t, 0, countFiles(t, root))
	require.NoError(t, storage.Remove(ctx, url))
}

func TestCollectMarksFilesAsStored(t *testing.T) {
	intake, root := newTestIntake(t, 1<<20, 5)

	atts, err := intake.Collect(context.Background(), buildForm(t, upload{name: "award.png", content: pngBytes}))
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.True(t, atts[0].Stored)

	typed := atts[0]
	typed.Stored = false
	intake.Discard(context.Background(), []Attachment{typed})
	assert.Equal(t, 1, countFiles(t, root), "references not produced by the intake are kept")

	intake.Discard(context.Background(), atts)
	assert.Equal(t, 0, countFiles(t, root))
}

func TestReferenceValidation(t *testing.T) {
	v := core.NewValidator()
	RegisterValidation(v)

	tests := []struct {
		name  string
		att   Attachment
		valid bool
	}{
		{"https reference", Attachment{URL: "https://files.example.edu/a.pdf"}, true},
		{"http reference", Attachment{URL: "http://files.example.edu/a.pdf"}, true},
		{"stored path", Attachment{URL: "/uploads/2026/10/a.pdf", Stored: true}, true},
		{"typed storage path", Attachment{URL: "/uploads/2026/10/a.pdf"}, false},
		{"bare path", Attachment{URL: "/etc/passwd"}, false},
		{"javascript", Attachment{URL: "javascript:alert(document.cookie)"}, false},
		{"ftp", Attachment{URL: "ftp://x/y"}, false},
		{"data", Attachment{URL: "data:text/html,<script>alert(1)</script>"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.att.Kind = KindDocument
			tt.att.OriginalName = "a.pdf"

			err := v.Struct(tt.att)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, "url must be a valid URL", core.FormatValidationError(err))
		})
	}
}

func TestLocalStorageHandler(t *testing.T) {
	root := t.TempDir()
	storage, err := NewLocalStorage(root, "/uploads")
	require.NoError(t, err)

	url, err := storage.Save(context.Background(), "note.txt", strings.NewReader("hello evidence"))
	require.NoError(t, err)
	dir := url[:strings.LastIndex(url, "/")+1]

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		storage.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := serve(url)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello evidence", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	tests := []struct {
		name string
		path string
	}{
		{"month listing", dir},
		{"month listing without slash", strings.TrimSuffix(dir, "/")},
		{"root listing", "/uploads/"},
		{"missing file", "/uploads/2026/01/missing.pdf"},
		{"traversal", "/uploads/../../etc/passwd"},
		{"outside prefix", "/elsewhere/note.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.path)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.NotContains(t, rec.Body.String(), "note.txt")
		})
	}
}
