// Package watcher turns raw filesystem notifications for one file into a
// debounced, de-echoed stream of content changes.
//
// Two stages sit between fsnotify and the consumer. A debounce stage
// collapses bursts of notifications (editors often truncate, write, and
// chmod in quick succession) into a single emission per quiet period. A
// hash stage then reads the file and drops the emission when the content
// digest equals the hash most recently recorded via SetKnownHash, so a
// write performed by the session engine itself, or a save that changed
// nothing, never surfaces as a change.
package watcher

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable reports that filesystem notifications cannot be used on
// this system. Sessions then degrade to exit-only sync.
var ErrUnavailable = errors.New("filesystem notifications unavailable")

// DefaultDebounce is the quiet window applied when Options.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// Change is one observed content change. Hash is the SHA-256 digest of the
// file bytes at emission time.
type Change struct {
	Hash [32]byte
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet window; a burst of notifications within it
	// produces one Change. Zero selects DefaultDebounce.
	Debounce time.Duration
}

// Watcher watches a single file for external modifications.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	dir      string
	debounce time.Duration

	mu    sync.Mutex
	known [32]byte

	events    chan Change
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// New starts watching path. The parent directory is watched rather than the
// file itself: editors that save via rename replace the inode, which would
// silently detach a file-level watch.
func New(path string, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsw:      fsw,
		path:     path,
		dir:      dir,
		debounce: debounce,
		events:   make(chan Change, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go w.run()
	return w, nil
}

// Available reports whether filesystem notifications work on this system.
// It is a startup probe: failures here mean every session will run without
// a watcher, which callers should log once rather than per session.
func Available() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fsw.Close()
}

// Events returns the stream of content changes. The channel is closed when
// the watcher stops.
func (w *Watcher) Events() <-chan Change {
	return w.events
}

// SetKnownHash records the digest the consumer currently believes is on
// disk. The next emission matching it is dropped. Consumers call this
// before performing their own writes to keep the echo out of the stream.
func (w *Watcher) SetKnownHash(h [32]byte) {
	w.mu.Lock()
	w.known = h
	w.mu.Unlock()
}

func (w *Watcher) knownHash() [32]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.known
}

// Close stops the watcher and closes the Events channel. Safe to call more
// than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		err = w.fsw.Close()
		close(w.events)
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	var timerC <-chan time.Time
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			// Reset the quiet window; only the post-burst state matters.
			if timerC != nil && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.emit()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", w.path).Msg("file watcher error")
		}
	}
}

// relevant filters directory notifications down to ones that can change our
// file's content. Rename and Create cover editors that write a new file and
// move it into place.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path && filepath.Base(ev.Name) != filepath.Base(w.path) {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// emit hashes the file and forwards a Change unless the content matches the
// known digest. The events channel keeps only the newest pending change: if
// the consumer hasn't drained the previous one, it is replaced.
func (w *Watcher) emit() {
	hash, err := w.hashFile()
	if err != nil {
		// The file can be briefly absent mid rename-save; hashFile already
		// retried, so a persistent error means the file is gone for good.
		log.Debug().Err(err).Str("path", w.path).Msg("skipping change, file unreadable")
		return
	}

	if hash == w.knownHash() {
		log.Trace().Str("path", w.path).Msg("dropping self-caused or no-op change")
		return
	}

	change := Change{Hash: hash}
	for {
		select {
		case w.events <- change:
			return
		default:
			select {
			case <-w.events:
			default:
			}
		}
	}
}

// hashFile digests the file's current content, retrying briefly because
// rename-based saves leave a short window where the path does not exist.
func (w *Watcher) hashFile() ([32]byte, error) {
	var hash [32]byte

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxElapsedTime = 500 * time.Millisecond

	err := backoff.Retry(func() error {
		data, err := os.ReadFile(w.path)
		if err != nil {
			return err
		}
		hash = sha256.Sum256(data)
		return nil
	}, policy)

	return hash, err
}

// Sum is the digest function used across the session: SHA-256 over the
// exact file bytes.
func Sum(data []byte) [32]byte {
	return sha256.Sum256(data)
}
