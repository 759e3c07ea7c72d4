package model

import "time"

// ArchiveRecord is a position-less copy of an item that left the list.
// OriginalID is historical and may point at an id that no longer exists.
type ArchiveRecord struct {
	ID         int64     `json:"id"`
	OriginalID int64     `json:"original_id"`
	Name       string    `json:"name"`
	Cost       Cost      `json:"cost"`
	Link       string    `json:"link,omitempty"`
	Type       Category  `json:"type"`
	AddedBy    string    `json:"added_by"`
	Reason     Reason    `json:"archived_reason"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Reason says why an item was archived.
type Reason string

// Archive reasons.
const (
	ReasonDeleted   Reason = "deleted"
	ReasonCompleted Reason = "completed"
)

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	return r == ReasonDeleted || r == ReasonCompleted
}
