// AngelaMos | 2026
// intake.go

package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/carterperez-dev/portfolio-backend/internal/config"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

// FormField is the multipart field carrying evidence files.
const FormField = "evidence"

const formOverhead = 1 << 20

type Intake struct {
	storage     Storage
	maxFileSize int64
	maxFiles    int
	now         func() time.Time
}

func NewIntake(storage Storage, cfg config.StorageConfig) *Intake {
	return &Intake{
		storage:     storage,
		maxFileSize: cfg.MaxFileSize,
		maxFiles:    cfg.MaxFiles,
		now:         time.Now,
	}
}

// MaxRequestSize bounds a whole multipart request.
func (in *Intake) MaxRequestSize() int64 {
	return in.maxFileSize*int64(in.maxFiles) + formOverhead
}

func (in *Intake) MaxFiles() int {
	return in.maxFiles
}

// Collect stores every file under FormField. Either all files are stored
// or none are.
func (in *Intake) Collect(ctx context.Context, form *multipart.Form) ([]Attachment, error) {
	if form == nil {
		return nil, nil
	}

	files := form.File[FormField]
	if len(files) == 0 {
		return nil, nil
	}

	if len(files) > in.maxFiles {
		return nil, core.ValidationError(
			fmt.Sprintf("at most %d evidence files are allowed", in.maxFiles),
			core.FieldError{Field: FormField, Message: fmt.Sprintf("at most %d files", in.maxFiles)},
		)
	}

	stored := make([]Attachment, 0, len(files))
	for _, fh := range files {
		att, err := in.store(ctx, fh)
		if err != nil {
			in.Discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, att)
	}

	return stored, nil
}

func (in *Intake) store(ctx context.Context, fh *multipart.FileHeader) (Attachment, error) {
	name := cleanFilename(fh.Filename)

	if fh.Size > in.maxFileSize {
		return Attachment{}, core.ValidationError(
			fmt.Sprintf("file %q exceeds the %d byte limit", name, in.maxFileSize),
			core.FieldError{Field: FormField, Message: name + " is too large"},
		)
	}

	f, err := fh.Open()
	if err != nil {
		return Attachment{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	detected, err := mimetype.DetectReader(f)
	if err != nil {
		return Attachment{}, fmt.Errorf("detect content type: %w", err)
	}

	kind, ok := Classify(detected.String())
	if !ok {
		return Attachment{}, core.ValidationError(
			fmt.Sprintf("file %q has unsupported type %s", name, detected.String()),
			core.FieldError{Field: FormField, Message: name + " must be an image, document or video"},
		)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Attachment{}, fmt.Errorf("rewind upload: %w", err)
	}

	hasher := sha256.New()
	counter := &countingReader{r: io.TeeReader(io.LimitReader(f, in.maxFileSize+1), hasher)}

	url, err := in.storage.Save(ctx, uuid.New().String()+detected.Extension(), counter)
	if err != nil {
		return Attachment{}, fmt.Errorf("store evidence: %w", err)
	}

	if counter.n > in.maxFileSize {
		//nolint:errcheck // best-effort cleanup of oversized upload
		_ = in.storage.Remove(ctx, url)
		return Attachment{}, core.ValidationError(
			fmt.Sprintf("file %q exceeds the %d byte limit", name, in.maxFileSize),
			core.FieldError{Field: FormField, Message: name + " is too large"},
		)
	}

	return Attachment{
		URL:          url,
		Kind:         kind,
		OriginalName: name,
		MimeType:     detected.String(),
		Size:         counter.n,
		SHA256:       hex.EncodeToString(hasher.Sum(nil)),
		UploadedAt:   in.now().UTC(),
		Stored:       true,
	}, nil
}

// Discard removes files the intake stored, logging failures. References
// a client typed in are never touched.
func (in *Intake) Discard(ctx context.Context, atts []Attachment) {
	for _, a := range Owned(atts) {
		if err := in.storage.Remove(ctx, a.URL); err != nil {
			slog.WarnContext(ctx, "failed to remove evidence file",
				"url", a.URL,
				"error", err,
			)
		}
	}
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
