package models

// EventKind classifies a mutation observed on the message ledger.
type EventKind string

const (
	EventInserted EventKind = "inserted"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
)

// ChangeEvent is the transient value pushed to live-feed subscribers
// after a ledger mutation commits. Deleted events carry the tombstone
// snapshot, never the redacted content.
type ChangeEvent struct {
	Kind    EventKind `json:"kind"`
	Message Message   `json:"message"`
}
