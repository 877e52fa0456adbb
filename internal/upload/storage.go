package upload

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// sniffLen is how many leading bytes are read for content detection.
const sniffLen = 3072

// ErrTooLarge is returned when a file exceeds the size limit.
var ErrTooLarge = errors.New("upload: file exceeds size limit")

// ErrCancelled is returned when an upload is cancelled while streaming.
var ErrCancelled = errors.New("upload: cancelled")

// Storage writes uploaded files to an afero filesystem, one directory per
// workspace.
type Storage struct {
	fs   afero.Fs
	root string
}

// NewStorage returns a Storage over fs. root is the OS directory fs is
// rooted at, used by LocalPath; it may be empty for in-memory filesystems.
func NewStorage(fs afero.Fs, root string) *Storage {
	return &Storage{fs: fs, root: root}
}

// NewOSStorage returns a Storage rooted at dir on the local disk.
func NewOSStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: create %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("upload: resolve %s: %w", dir, err)
	}
	return NewStorage(afero.NewBasePathFs(afero.NewOsFs(), abs), abs), nil
}

// Fs returns the underlying filesystem.
func (s *Storage) Fs() afero.Fs { return s.fs }

// NewPath returns a fresh storage path for a file in the workspace,
// keeping the extension of filename.
func (s *Storage) NewPath(workspaceID, filename string) string {
	ext := strings.ToLower(path.Ext(filepath.Base(filename)))
	return path.Join(workspaceID, uuid.NewString()+ext)
}

// LocalPath maps a storage path to an OS path for tools that need a real
// file, such as ffmpeg.
func (s *Storage) LocalPath(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}

// Sniff reads the head of r and detects its MIME type. The returned reader
// replays the sniffed bytes.
func Sniff(r io.Reader) (string, io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", nil, fmt.Errorf("upload: read head: %w", err)
	}
	return mimetype.Detect(head).String(), br, nil
}

// Allowed reports whether contentType matches one of the prefixes.
func Allowed(contentType string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(contentType, p) {
			return true
		}
	}
	return false
}

type progressWriter struct {
	w       io.Writer
	written int64
	report  func(int64) error
}

func (pw *progressWriter) Write(b []byte) (int, error) {
	n, err := pw.w.Write(b)
	pw.written += int64(n)
	if err != nil {
		return n, err
	}
	if pw.report != nil {
		if err := pw.report(pw.written); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Write copies r to p, failing with ErrTooLarge past maxBytes. report, if
// set, is called with the running byte count after each chunk; an error
// from it aborts the copy. A partial file is removed on error.
func (s *Storage) Write(p string, r io.Reader, maxBytes int64, report func(int64) error) (int64, error) {
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return 0, fmt.Errorf("upload: create dir: %w", err)
	}
	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("upload: create %s: %w", p, err)
	}

	pw := &progressWriter{w: f, report: report}
	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	_, err = io.Copy(pw, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && maxBytes > 0 && pw.written > maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = s.fs.Remove(p)
		if errors.Is(err, ErrTooLarge) || errors.Is(err, ErrCancelled) {
			return pw.written, err
		}
		return pw.written, fmt.Errorf("upload: write %s: %w", p, err)
	}
	return pw.written, nil
}

// Open opens a stored file for reading.
func (s *Storage) Open(p string) (afero.File, error) {
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("upload: open %s: %w", p, err)
	}
	return f, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Storage) Remove(p string) error {
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("upload: remove %s: %w", p, err)
	}
	return nil
}
