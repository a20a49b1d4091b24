package ws

import (
	"court-rotation/internal/rotation"
	"court-rotation/internal/stream"
)

const ProtocolVersion = "1.0"

// ClientMessage is anything a connected client sends. Only "refresh" is
// acted on; it asks for a fresh snapshot.
type ClientMessage struct {
	Type string `json:"type"`
}

type SnapshotMessage struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	View            rotation.View `json:"view"`
}

type EventMessage struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	Event           stream.StreamEvent `json:"event"`
}

type ErrorMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Error           string `json:"error"`
}
