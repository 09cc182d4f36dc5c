package domain

import "time"

type EventKind string

const (
	EventUploaded EventKind = "uploaded"
	EventRenamed  EventKind = "renamed"
	EventShared   EventKind = "shared"
	EventDeleted  EventKind = "deleted"
)

// FileEvent tells listeners that a listing containing FileID is stale.
// SharedWith holds the sharee emails at the time of the change; for a share
// change it also includes the emails that were removed.
type FileEvent struct {
	Kind       EventKind `json:"kind"`
	FileID     string    `json:"file_id"`
	OwnerID    string    `json:"owner_id"`
	SharedWith []string  `json:"shared_with"`
	At         time.Time `json:"at"`
}
