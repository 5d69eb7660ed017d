// Package attendance exposes the attendance records this core reads. Records
// are created by the face-match pipeline and resolved by human reviewers; the
// notifiers never mutate them.
package attendance

import "time"

// Record is one attendance mark. Status is free text; callers normalize before
// comparing. ProposedStatus holds the face-match suggestion while a record is
// under review.
type Record struct {
	ID             string     `json:"id"`
	ClassID        string     `json:"classID"`
	StudentID      string     `json:"studentID"`
	Status         string     `json:"status"`
	IsPending      bool       `json:"isPending"`
	ProposedStatus string     `json:"proposedStatus,omitempty"`
	Date           *time.Time `json:"date,omitempty"`
}
