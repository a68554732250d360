// Package session contains the per-session synchronization engine and the
// WebSocket adapter feeding it.
//
// One Engine owns one scratch file, one editor process, one file watcher
// and one protocol connection, and merges their events into a single
// ordered view of "current text". It is the sole writer of that state: the
// run loop is one goroutine selecting over the three sources, so no
// intra-session locking is needed.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ghostedit/ghostedit/internal/editor"
	"github.com/ghostedit/ghostedit/internal/event"
	"github.com/ghostedit/ghostedit/internal/logging"
	"github.com/ghostedit/ghostedit/internal/watcher"
	"github.com/ghostedit/ghostedit/internal/workspace"
	"github.com/ghostedit/ghostedit/pkg/protocol"
)

// State is the engine's lifecycle position.
type State int

const (
	StateStarting State = iota
	StateActive
	StateClosing
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures one Engine.
type Options struct {
	// EditorTemplate is the editor command with optional placeholders.
	EditorTemplate string
	// Known is the editor cursor-flag table; nil selects the built-ins.
	Known editor.KnownEditors
	// Debounce is the watcher's quiet window; zero selects the default.
	Debounce time.Duration
	// Watch enables the file watcher. Disabled, editor changes are only
	// picked up at exit.
	Watch bool
	// StopEditor terminates a still-running editor when the browser side
	// disconnects first. When false the editor is left to exit on its own.
	StopEditor bool
	// Bus receives lifecycle events; nil disables publishing.
	Bus *event.Bus
}

// Engine drives one session from first message to cleanup.
type Engine struct {
	id   string
	conn Conn
	opts Options
	log  zerolog.Logger

	state State
	path  string

	ws    *workspace.Workspace
	watch *watcher.Watcher
	proc  *editor.Process

	// lastKnown is the content both sides are believed to agree on. Only
	// the run loop writes it.
	lastKnown  string
	selections []protocol.Range

	lastSent string
	sentAny  bool

	closeReason string
}

// New creates an Engine for an accepted protocol session.
func New(conn Conn, opts Options) *Engine {
	id := ulid.Make().String()
	return &Engine{
		id:   id,
		conn: conn,
		opts: opts,
		log:  logging.With().Str("session", id).Logger(),
	}
}

// ID returns the session's identifier.
func (e *Engine) ID() string {
	return e.id
}

// State returns the engine's current lifecycle state. Only meaningful from
// the goroutine running the engine, or after Run has returned.
func (e *Engine) State() State {
	return e.state
}

// Path returns the workspace file's location, empty before the session
// started. The file itself is gone once the session closes.
func (e *Engine) Path() string {
	return e.path
}

// Run executes the whole session: wait for the initial update, materialize
// the workspace, spawn the editor, arm the watcher, react until a source
// signals closure, then tear everything down. It always reaches StateClosed
// and always attempts cleanup, whatever the exit path.
func (e *Engine) Run(ctx context.Context) error {
	err := e.start(ctx)
	if err == nil {
		e.reactLoop(ctx)
	} else {
		e.closeReason = err.Error()
	}

	e.shutdown()
	return err
}

// start performs the Starting phase.
func (e *Engine) start(ctx context.Context) error {
	var first protocol.TextUpdate
	select {
	case u, ok := <-e.conn.Inbound():
		if !ok {
			return errors.New("connection closed before initial update")
		}
		first = u
	case <-ctx.Done():
		return ctx.Err()
	}

	e.log.Info().Str("title", first.Title).Str("url", first.URL).Msg("session starting")

	ws, err := workspace.Create(first.Title, first.Text)
	if err != nil {
		return err
	}
	e.ws = ws
	e.path = ws.Path()
	e.lastKnown = first.Text
	e.selections = first.Selections

	if e.opts.Watch {
		w, err := watcher.New(ws.Path(), watcher.Options{Debounce: e.opts.Debounce})
		if err != nil {
			// Watch unavailability was probed and logged at startup;
			// here it only means this session syncs at editor exit.
			e.log.Debug().Err(err).Msg("running without file watcher")
		} else {
			w.SetKnownHash(workspace.Hash(first.Text))
			e.watch = w
		}
	}

	line, col := protocol.CursorLineCol(first)
	proc, err := editor.Spawn(ctx, editor.SpawnConfig{
		Template: e.opts.EditorTemplate,
		File:     ws.Path(),
		Line:     line,
		Col:      col,
		Known:    e.opts.Known,
		URL:      first.URL,
		Title:    first.Title,
	})
	if err != nil {
		return fmt.Errorf("spawning editor: %w", err)
	}
	e.proc = proc

	e.publish(event.Event{Type: event.SessionOpened, Data: event.SessionOpenedData{
		SessionID: e.id,
		Title:     first.Title,
		URL:       first.URL,
	}})
	e.publish(event.Event{Type: event.EditorStarted, Data: event.EditorStartedData{
		SessionID: e.id,
		Command:   e.opts.EditorTemplate,
	}})

	e.state = StateActive
	return nil
}

// reactLoop is the Active phase: one select over the three event sources.
// Each branch is an atomic state transition; the loop exits when the engine
// leaves StateActive.
func (e *Engine) reactLoop(ctx context.Context) {
	var watchEvents <-chan watcher.Change
	if e.watch != nil {
		watchEvents = e.watch.Events()
	}

	for e.state == StateActive {
		select {
		case <-ctx.Done():
			e.beginClose("server shutting down")

		case u, ok := <-e.conn.Inbound():
			if !ok {
				e.beginClose("browser disconnected")
				continue
			}
			e.applyUpdate(u)

		case c, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			e.applyChange(c)

		case status := <-e.proc.Exit():
			// Editors commonly write then exit; a change event that became
			// ready alongside the exit must be applied first so the final
			// content wins.
			e.drainChanges(watchEvents)
			e.editorExited(status)
		}
	}
}

// applyUpdate handles an inbound protocol message: the browser pushed new
// text. The content hash is recorded as known before the file write, so
// the watcher recognizes the resulting notification as self-caused.
func (e *Engine) applyUpdate(u protocol.TextUpdate) {
	e.selections = u.Selections

	if u.Text == e.lastKnown {
		return
	}

	e.lastKnown = u.Text
	if e.watch != nil {
		e.watch.SetKnownHash(workspace.Hash(u.Text))
	}

	if err := e.ws.Write(u.Text); err != nil {
		// The file can be gone if the editor removed it; the session ends
		// via editor exit shortly after, so a lost write is tolerable.
		e.log.Warn().Err(err).Msg("inbound update not written")
		return
	}
	e.log.Debug().Int("bytes", len(u.Text)).Msg("applied inbound update")
}

// applyChange handles a watcher event: the editor wrote the file.
func (e *Engine) applyChange(c watcher.Change) {
	text, err := e.ws.Read()
	if err != nil {
		e.log.Warn().Err(err).Msg("change event but file unreadable")
		return
	}

	e.lastKnown = text
	if e.watch != nil {
		e.watch.SetKnownHash(c.Hash)
	}

	e.send(text)
}

// drainChanges applies any already-emitted change events without blocking.
func (e *Engine) drainChanges(watchEvents <-chan watcher.Change) {
	for {
		select {
		case c, ok := <-watchEvents:
			if !ok {
				return
			}
			e.applyChange(c)
		default:
			return
		}
	}
}

func (e *Engine) editorExited(status editor.ExitStatus) {
	if status.Err != nil {
		e.log.Error().Err(status.Err).Msg("waiting on editor failed")
	}
	e.log.Info().Int("code", status.Code).Msg("editor exited")
	e.publish(event.Event{Type: event.EditorExited, Data: event.EditorExitedData{
		SessionID: e.id,
		ExitCode:  status.Code,
	}})
	e.proc = nil
	e.beginClose("editor exited")
}

func (e *Engine) beginClose(reason string) {
	if e.state != StateActive {
		return
	}
	e.state = StateClosing
	e.closeReason = reason
	e.log.Debug().Str("reason", reason).Msg("session closing")
}

// send pushes content to the browser, remembering what went out so an
// identical re-send is skipped.
func (e *Engine) send(text string) {
	if e.sentAny && text == e.lastSent {
		return
	}

	err := e.conn.Send(protocol.TextSync{Text: text, Selections: e.selections})
	if err != nil {
		// Best effort: a dropped transport surfaces as a closed inbound
		// channel soon enough.
		e.log.Debug().Err(err).Msg("outbound send failed")
		return
	}
	e.lastSent = text
	e.sentAny = true
	e.publish(event.Event{Type: event.SessionSynced, Data: event.SessionSyncedData{
		SessionID: e.id,
		Bytes:     len(text),
	}})
}

// shutdown is the Closing and Closed phases. Every step is idempotent and
// tolerates the previous steps having partially happened; there is no exit
// path that skips it.
func (e *Engine) shutdown() {
	if e.state == StateClosed {
		return
	}
	e.state = StateClosing

	// No further filesystem events once closing.
	if e.watch != nil {
		e.watch.Close()
	}

	// The editor may still be running when the browser side went first.
	// Per policy it is either stopped and reaped here, or left to finish
	// on its own; its late writes land on a deleted path and vanish.
	if e.proc != nil {
		if e.opts.StopEditor {
			e.proc.Stop()
			select {
			case status := <-e.proc.Exit():
				e.log.Info().Int("code", status.Code).Msg("editor exited during close")
			case <-time.After(10 * time.Second):
				e.log.Warn().Msg("editor still running, abandoning wait")
			}
		} else {
			e.log.Info().Msg("leaving editor process running")
		}
		e.proc = nil
	}

	// Final snapshot: whatever is in the file now is the last word,
	// unless it is exactly what the browser already has.
	if e.ws != nil {
		if text, err := e.ws.Read(); err == nil {
			e.lastKnown = text
		}
		e.send(e.lastKnown)
	}

	e.conn.Close()

	if e.ws != nil {
		if err := e.ws.Destroy(); err != nil {
			e.log.Warn().Err(err).Msg("workspace cleanup failed")
		}
		e.ws = nil
	}

	e.state = StateClosed
	if err := e.conn.Err(); err != nil {
		e.log.Info().Err(err).Str("reason", e.closeReason).Msg("session closed after transport error")
	} else {
		e.log.Info().Str("reason", e.closeReason).Msg("session closed")
	}
	e.publish(event.Event{Type: event.SessionClosed, Data: event.SessionClosedData{
		SessionID: e.id,
		Reason:    e.closeReason,
	}})
}

func (e *Engine) publish(ev event.Event) {
	if e.opts.Bus != nil {
		e.opts.Bus.PublishSync(ev)
	}
}
