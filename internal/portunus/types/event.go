package types

import "time"

// TimestampLayout is the wall-clock format of persisted events.
const TimestampLayout = "2006-01-02 15:04:05"

type EventKind string

const (
	EventEntry EventKind = "entry"
	EventExit  EventKind = "exit"
)

func (k EventKind) Valid() bool {
	return k == EventEntry || k == EventExit
}

// Label is the display form used in notifications and the mirror log.
func (k EventKind) Label() string {
	switch k {
	case EventEntry:
		return "Entry"
	case EventExit:
		return "Exit"
	default:
		return string(k)
	}
}

// NextKind is the toggle rule: no previous event or a previous Exit yields
// Entry, a previous Entry yields Exit.
func NextKind(last EventKind, found bool) EventKind {
	if !found || last != EventEntry {
		return EventEntry
	}
	return EventExit
}

// Detection channels.
const (
	ChannelBadge = "badge"
	ChannelFace  = "face"
)

// AccessEvent is one persisted Entry/Exit transition.
type AccessEvent struct {
	ID         int64     `json:"id"`
	IdentityID int64     `json:"identity_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Kind       EventKind `json:"kind"`
	Channel    string    `json:"channel"`
}

// EventRow pairs an event with its identity for the admin read path.
type EventRow struct {
	Event    AccessEvent `json:"event"`
	Identity Identity    `json:"identity"`
}
