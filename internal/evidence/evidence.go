// AngelaMos | 2026
// evidence.go

// Package evidence turns uploaded files into stored attachment references.
package evidence

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindVideo    Kind = "video"
)

// Attachment is a stored file reference supporting an achievement claim.
// Stored is set only by the intake and marks files this service owns.
type Attachment struct {
	URL          string    `json:"url"                bson:"url"                validate:"required,max=2048"`
	Kind         Kind      `json:"kind"               bson:"kind"               validate:"required,oneof=image document video"`
	OriginalName string    `json:"originalName"       bson:"originalName"       validate:"required,max=255"`
	MimeType     string    `json:"mimeType,omitempty" bson:"mimeType,omitempty" validate:"omitempty,max=255"`
	Size         int64     `json:"size,omitempty"     bson:"size,omitempty"     validate:"omitempty,min=0"`
	SHA256       string    `json:"sha256,omitempty"   bson:"sha256,omitempty"   validate:"omitempty,len=64,hexadecimal"`
	UploadedAt   time.Time `json:"uploadedAt"         bson:"uploadedAt"`
	Stored       bool      `json:"-"                  bson:"stored,omitempty"`
}

// RegisterValidation requires client supplied references to be absolute
// http or https URLs. Files stored by the intake keep their storage path.
func RegisterValidation(v *validator.Validate) {
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		a, ok := sl.Current().Interface().(Attachment)
		if !ok || a.Stored || a.URL == "" {
			return
		}
		if sl.Validator().Var(a.URL, "http_url") != nil {
			sl.ReportError(a.URL, "url", "URL", "http_url", "")
		}
	}, Attachment{})
}

// Owned keeps the attachments whose files this service stored.
func Owned(atts []Attachment) []Attachment {
	var out []Attachment
	for _, a := range atts {
		if a.Stored {
			out = append(out, a)
		}
	}
	return out
}

var mimeKinds = map[string]Kind{
	"image/jpeg":         KindImage,
	"image/png":          KindImage,
	"image/gif":          KindImage,
	"image/webp":         KindImage,
	"image/heic":         KindImage,
	"video/mp4":          KindVideo,
	"video/webm":         KindVideo,
	"video/quicktime":    KindVideo,
	"application/pdf":    KindDocument,
	"application/msword": KindDocument,
	"text/plain":         KindDocument,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   KindDocument,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": KindDocument,
	"application/vnd.oasis.opendocument.text":                                   KindDocument,
}

// Classify maps a detected MIME type to an evidence kind. Parameters such
// as charset are ignored.
func Classify(mimeType string) (Kind, bool) {
	base, _, _ := strings.Cut(mimeType, ";")
	kind, ok := mimeKinds[strings.ToLower(strings.TrimSpace(base))]
	return kind, ok
}

// Stamp fills in upload times missing from client-supplied references.
func Stamp(atts []Attachment, now time.Time) []Attachment {
	out := make([]Attachment, len(atts))
	for i, a := range atts {
		a.OriginalName = strings.TrimSpace(a.OriginalName)
		if a.UploadedAt.IsZero() {
			a.UploadedAt = now
		}
		out[i] = a
	}
	return out
}
