package storage

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind selects the target directory and the validation rules applied to an
// uploaded file.
type Kind string

const (
	KindImage      Kind = "images"
	KindAttachment Kind = "attachments"
)

var (
	// ErrFileType is returned when an upload fails the per-kind type check.
	ErrFileType = errors.New("file type not allowed")
	// ErrFileTooLarge is returned when an upload exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file too large")
)

// FileStore persists uploaded payloads under collision-resistant names.
// Delete is idempotent: removing a name with no backing file is a no-op.
type FileStore interface {
	Save(kind Kind, data []byte, originalName string) (string, error)
	Delete(kind Kind, storedName string) error
	Exists(kind Kind, storedName string) bool
}

var imageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

var attachmentTypes = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
	"application/xml",
	"text/xml",
}

var attachmentExtensions = []string{".pdf", ".docx", ".txt", ".xml"}

// Validate applies the size ceiling and the per-kind type rules. It runs
// while the multipart form is parsed, before anything touches disk or the
// database, and again inside Save. Attachments accept a known extension as
// fallback because DetectContentType cannot tell a docx from any other zip
// container.
func Validate(kind Kind, data []byte, originalName string, maxSize int64) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%w: maximum size is %d bytes", ErrFileTooLarge, maxSize)
	}

	ctype := http.DetectContentType(data)
	// DetectContentType appends parameters like "; charset=utf-8"
	if i := strings.Index(ctype, ";"); i >= 0 {
		ctype = strings.TrimSpace(ctype[:i])
	}

	switch kind {
	case KindImage:
		for _, t := range imageTypes {
			if ctype == t {
				return nil
			}
		}
		return fmt.Errorf("%w: only JPEG, PNG, GIF and WebP images are supported", ErrFileType)
	case KindAttachment:
		for _, t := range attachmentTypes {
			if ctype == t {
				return nil
			}
		}
		lower := strings.ToLower(originalName)
		for _, ext := range attachmentExtensions {
			if strings.HasSuffix(lower, ext) {
				return nil
			}
		}
		return fmt.Errorf("%w: only PDF, DOCX, TXT and XML files are supported", ErrFileType)
	default:
		return fmt.Errorf("%w: unknown upload kind %q", ErrFileType, kind)
	}
}

// storedName builds the on-disk name for an upload. Images get a millisecond
// timestamp prefix; attachments additionally get a random token since several
// can land in the same request.
func storedName(kind Kind, originalName string) string {
	base := filepath.Base(originalName)
	now := time.Now()
	if base == "." || base == "" || base == string(filepath.Separator) {
		base = fmt.Sprintf("file_%d", now.UnixNano())
	}
	if kind == KindAttachment {
		token := strings.SplitN(uuid.NewString(), "-", 2)[0]
		return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), token, base)
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), base)
}
