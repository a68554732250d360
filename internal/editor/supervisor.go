package editor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// stopGrace is how long Stop waits after SIGTERM before killing.
const stopGrace = 3 * time.Second

// ExitStatus is the terminal event of an editor process.
type ExitStatus struct {
	// Code is the process exit code; -1 when the process was killed or
	// never ran to completion.
	Code int
	// Err is non-nil when waiting on the process itself failed.
	Err error
}

// SpawnConfig describes one editor invocation.
type SpawnConfig struct {
	// Template is the editor command with optional %f/%l/%c placeholders.
	Template string
	// File is the workspace file to edit.
	File string
	// Line and Col position the cursor for editors that support it.
	Line, Col int
	// Known is the cursor-flag table; nil means the built-in table.
	Known KnownEditors
	// URL and Title describe the originating page, exported to the child
	// as GHOST_TEXT_URL and GHOST_TEXT_TITLE.
	URL, Title string
}

// Process is a running editor.
type Process struct {
	cmd  *exec.Cmd
	exit chan ExitStatus
	done chan struct{}

	stopOnce sync.Once
}

// Spawn launches the editor and begins waiting for its exit. A failure to
// start (command not found, permission denied) is returned synchronously;
// everything after a successful start arrives on Exit.
func Spawn(ctx context.Context, cfg SpawnConfig) (*Process, error) {
	known := cfg.Known
	if known == nil {
		known = DefaultKnownEditors()
	}

	args, err := BuildArgs(cfg.Template, cfg.File, cfg.Line, cfg.Col, known)
	if err != nil {
		return nil, err
	}

	log.Debug().Strs("argv", args).Msg("starting editor")

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"GHOST_TEXT_URL="+cfg.URL,
		"GHOST_TEXT_TITLE="+cfg.Title,
	)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting editor %q: %w", args[0], err)
	}

	p := &Process{
		cmd:  cmd,
		exit: make(chan ExitStatus, 1),
		done: make(chan struct{}),
	}

	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	close(p.done)

	status := ExitStatus{Code: p.cmd.ProcessState.ExitCode()}
	if err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			status.Err = err
		}
		// Non-zero exits still mean "user done editing"; note and move on.
		log.Debug().Err(err).Int("code", status.Code).Msg("editor exited with error")
	}

	p.exit <- status
}

// Exit delivers the process's exit status exactly once.
func (p *Process) Exit() <-chan ExitStatus {
	return p.exit
}

// Stop asks the editor to terminate: SIGTERM first, SIGKILL if it is still
// around after a grace period. Safe to call repeatedly and after exit.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			return
		}

		select {
		case <-p.done:
		case <-time.After(stopGrace):
			log.Warn().Msg("editor ignored SIGTERM, killing")
			p.cmd.Process.Kill()
		}
	})
}
