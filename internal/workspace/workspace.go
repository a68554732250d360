// Package workspace owns the per-session scratch file that bridges the
// browser text box and the editor process.
//
// Each session gets a private temp directory holding a single file named
// after the page title. The engine is the only writer through this package;
// the editor writes through the filesystem directly. Content on disk always
// ends with a newline so editors behave, and Read strips that newline back
// off before the text returns to the browser.
package workspace

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPattern  = "ghostedit-*"
	defaultName = "buffer"
	maxTitleLen = 16
	fileSuffix  = ".txt"
)

// Workspace is one session's scratch directory and file.
type Workspace struct {
	dir  string
	path string
}

// Create allocates a fresh scratch directory and seeds the file with the
// initial content. The file name is derived from the page title so the
// editor's title bar and syntax detection have something to work with.
func Create(title, initial string) (*Workspace, error) {
	dir, err := os.MkdirTemp("", dirPattern)
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	w := &Workspace{
		dir:  dir,
		path: filepath.Join(dir, FileName(title)),
	}

	if err := w.Write(initial); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	return w, nil
}

// Path returns the scratch file's location.
func (w *Workspace) Path() string {
	return w.path
}

// Write replaces the file's content. The write is flushed to disk before
// returning so the watcher's view matches what the engine intended.
func (w *Workspace) Write(content string) error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("writing workspace file: %w", err)
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("writing workspace file: %w", err)
	}
	if !strings.HasSuffix(content, "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			f.Close()
			return fmt.Errorf("writing workspace file: %w", err)
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("flushing workspace file: %w", err)
	}
	return f.Close()
}

// Read returns the file's content with the trailing newline stripped.
func (w *Workspace) Read() (string, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return "", fmt.Errorf("reading workspace file: %w", err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

// Destroy removes the scratch directory and everything in it. An already
// removed directory is not an error; Destroy is safe to call repeatedly.
func (w *Workspace) Destroy() error {
	err := os.RemoveAll(w.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing scratch directory: %w", err)
	}
	return nil
}

// Hash digests content as it would appear on disk, trailing newline
// included. Recording this hash before a Write lets a file watcher
// recognize the resulting notification as self-caused.
func Hash(content string) [32]byte {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return sha256.Sum256([]byte(content))
}

// FileName sanitizes a page title into a scratch file name. Empty titles
// fall back to a generic name; long titles are truncated and characters
// that upset shells or paths are replaced.
func FileName(title string) string {
	if title == "" {
		return defaultName + fileSuffix
	}

	runes := []rune(title)
	if len(runes) > maxTitleLen {
		runes = runes[:maxTitleLen]
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', '\r', '\n', '\t':
			return '-'
		}
		return r
	}, string(runes))

	return cleaned + fileSuffix
}
