package server

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// SystemdListener returns the listener passed in by systemd socket
// activation, or an error when the activation environment is absent or
// malformed. The convention: LISTEN_PID names this process, LISTEN_FDS
// counts inherited sockets starting at file descriptor 3.
func SystemdListener() (net.Listener, error) {
	pidStr := os.Getenv("LISTEN_PID")
	fdsStr := os.Getenv("LISTEN_FDS")
	if pidStr == "" || fdsStr == "" {
		return nil, fmt.Errorf("not socket-activated: LISTEN_PID/LISTEN_FDS unset")
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return nil, fmt.Errorf("parsing LISTEN_PID: %w", err)
	}
	if pid != os.Getpid() {
		return nil, fmt.Errorf("LISTEN_PID %d is not this process (%d)", pid, os.Getpid())
	}

	fds, err := strconv.Atoi(fdsStr)
	if err != nil {
		return nil, fmt.Errorf("parsing LISTEN_FDS: %w", err)
	}
	if fds != 1 {
		return nil, fmt.Errorf("expected exactly 1 activated socket, got %d", fds)
	}

	// Don't leak the activation environment into the editor child.
	os.Unsetenv("LISTEN_PID")
	os.Unsetenv("LISTEN_FDS")
	os.Unsetenv("LISTEN_FDNAMES")

	f := os.NewFile(3, "systemd-socket")
	if f == nil {
		return nil, fmt.Errorf("file descriptor 3 is not open")
	}
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("using activated socket: %w", err)
	}
	return ln, nil
}
