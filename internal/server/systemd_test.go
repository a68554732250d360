package server

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSystemdListenerRequiresEnv(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")
	_, err := SystemdListener()
	require.Error(t, err)
}

func TestSystemdListenerWrongPID(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()+1))
	t.Setenv("LISTEN_FDS", "1")
	_, err := SystemdListener()
	require.Error(t, err)
}

func TestSystemdListenerBadFDCount(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))
	t.Setenv("LISTEN_FDS", "2")
	_, err := SystemdListener()
	require.Error(t, err)
}
