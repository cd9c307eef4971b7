package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrInvalidFilename is returned when nothing usable remains of an
	// uploaded file's name after sanitising it.
	ErrInvalidFilename = errors.New("invalid upload filename")

	// ErrUploadTooLarge is returned when an upload exceeds the size limit.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
)

// filenameStripPattern matches every character not allowed in a stored name.
var filenameStripPattern = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// UploadStore saves uploaded log files under a single directory.
type UploadStore interface {
	Save(filename string, r io.Reader) (string, error)
	Dir() string
}

type fileUploadStore struct {
	dir      string
	maxBytes int64
	events   EventLogger
}

// NewUploadStore creates an UploadStore rooted at dir. A maxBytes of zero or
// less disables the size limit. events may be nil.
func NewUploadStore(dir string, maxBytes int64, events EventLogger) UploadStore {
	return &fileUploadStore{dir: dir, maxBytes: maxBytes, events: events}
}

func (s *fileUploadStore) Dir() string {
	return s.dir
}

// Save writes the contents of r to the upload directory under the sanitised
// form of filename and returns the stored path. An existing file with the
// same name is replaced.
func (s *fileUploadStore) Save(filename string, r io.Reader) (string, error) {
	name := SecureFilename(filename)
	if name == "" {
		s.logRejected(filename, ErrInvalidFilename)
		return "", ErrInvalidFilename
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	outPath := filepath.Join(s.dir, name)
	// Each save writes its own temp file so concurrent uploads of the same
	// name never share one.
	dst, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	tmpPath := dst.Name()
	defer func() {
		_ = dst.Close()
		_ = os.Remove(tmpPath)
	}()
	if err := dst.Chmod(0o644); err != nil {
		return "", fmt.Errorf("setting upload permissions: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	written, err := io.Copy(dst, src)
	if err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		s.logRejected(filename, ErrUploadTooLarge)
		return "", ErrUploadTooLarge
	}

	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("closing upload: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return "", fmt.Errorf("storing upload: %w", err)
	}

	if s.events != nil {
		_ = s.events.LogEvent(EventUploadSaved, map[string]any{
			"file":  outPath,
			"bytes": written,
		})
	}
	return outPath, nil
}

func (s *fileUploadStore) logRejected(filename string, reason error) {
	if s.events == nil {
		return
	}
	_ = s.events.LogEvent(EventUploadRejected, map[string]any{
		"filename": filename,
		"reason":   reason.Error(),
	})
}

// SecureFilename reduces an uploaded filename to a flat ASCII name that is
// safe to join onto the upload directory. Accented letters are decomposed
// and stripped to ASCII, path separators become spaces, whitespace runs
// become underscores, and anything outside [A-Za-z0-9_.-] is dropped.
// The result may be empty.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.ReplaceAll(name, "/", " ")
	name = strings.ReplaceAll(name, "\\", " ")
	name = strings.Join(strings.Fields(name), "_")
	name = filenameStripPattern.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}
