package models

import "time"

// Event types pushed to the frontend.
const (
	EventWorkspaceChanged  = "workspace:changed"
	EventWorkspaceClosed   = "workspace:closed"
	EventFileOpened        = "file:opened"
	EventFileClosed        = "file:closed"
	EventFileModified      = "file:modified"
	EventFileSaved         = "file:saved"
	EventCheckpointCreated = "checkpoint:created"
	EventCheckpointRestore = "checkpoint:restored"
	EventSettingsChanged   = "settings:changed"
)

// Event is a notification for subscribers of the event stream.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
