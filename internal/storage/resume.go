package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dunamismax/jobboard/internal/apperr"
)

const (
	DefaultMaxResumeBytes = 10 << 20
	DefaultPresignTTL     = time.Hour
	DefaultResumePrefix   = "cvs/"
)

var resumeContentTypes = map[string][]string{
	"application/pdf":    {".pdf"},
	"application/msword": {".doc"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {".docx"},
}

// ValidateResume checks that filename and contentType describe an accepted
// résumé document (PDF, DOC or DOCX).
func ValidateResume(filename, contentType string) error {
	extensions, ok := resumeContentTypes[strings.TrimSpace(contentType)]
	if !ok {
		return apperr.Validation([]apperr.FieldError{{
			Field:   "fileType",
			Message: "File must be a PDF, DOC, or DOCX document",
		}})
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf", ".doc", ".docx":
	default:
		return apperr.Validation([]apperr.FieldError{{
			Field:   "filename",
			Message: "File must have a .pdf, .doc, or .docx extension",
		}})
	}

	for _, allowed := range extensions {
		if allowed == ext {
			return nil
		}
	}
	return apperr.Validation([]apperr.FieldError{{
		Field:   "filename",
		Message: fmt.Sprintf("File extension %s does not match type %s", ext, contentType),
	}})
}

// ResumeObjectKey builds prefix + UTC timestamp + sanitised filename.
func ResumeObjectKey(prefix, filename string, now time.Time) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultResumePrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	timestamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format("2006-01-02T15:04:05.000Z"))
	return prefix + timestamp + "-" + sanitizeFilename(filename)
}

func sanitizeFilename(in string) string {
	in = filepath.Base(strings.TrimSpace(in))
	if in == "" || in == "." || in == "/" {
		return "upload"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
