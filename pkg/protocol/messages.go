// Package protocol defines the GhostText wire messages exchanged with the
// browser extension over the session WebSocket, plus the discovery payload.
//
// See https://github.com/fregante/GhostText/blob/main/PROTOCOL.md
package protocol

// ProtocolVersion is the GhostText protocol version this server speaks.
const ProtocolVersion = 1

// Redirect is the discovery response served on a plain HTTP GET. The
// extension reads the port and reconnects with a WebSocket upgrade.
// Field names are capitalized on the wire, per the protocol.
type Redirect struct {
	WebSocketPort   int `json:"WebSocketPort"`
	ProtocolVersion int `json:"ProtocolVersion"`
}

// Range is a selection inside the text box, expressed as 0-based UTF-16
// code-unit offsets (JavaScript string indices).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// TextUpdate is an inbound frame: the browser pushing the text box state.
// The first frame of a session seeds the workspace file; later frames
// overwrite it.
type TextUpdate struct {
	Selections []Range `json:"selections"`
	Syntax     string  `json:"syntax"`
	Text       string  `json:"text"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
}

// TextSync is an outbound frame: the server pushing file content back to
// the text box after an editor save.
type TextSync struct {
	Text       string  `json:"text"`
	Selections []Range `json:"selections"`
}
