package event

// SessionOpenedData accompanies session.opened events.
type SessionOpenedData struct {
	SessionID string `json:"sessionID"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

// SessionSyncedData accompanies session.synced events, published whenever
// content is pushed back to the browser.
type SessionSyncedData struct {
	SessionID string `json:"sessionID"`
	Bytes     int    `json:"bytes"`
}

// SessionClosedData accompanies session.closed events.
type SessionClosedData struct {
	SessionID string `json:"sessionID"`
	Reason    string `json:"reason"`
}

// EditorStartedData accompanies editor.started events.
type EditorStartedData struct {
	SessionID string `json:"sessionID"`
	Command   string `json:"command"`
}

// EditorExitedData accompanies editor.exited events.
type EditorExitedData struct {
	SessionID string `json:"sessionID"`
	ExitCode  int    `json:"exitCode"`
}

// WatchDegradedData accompanies watch.degraded events, published once when
// filesystem notifications are unavailable and sessions fall back to
// exit-only sync.
type WatchDegradedData struct {
	Reason string `json:"reason"`
}
