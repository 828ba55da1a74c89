package model

import "time"

// Notification records a change made by a non-privileged user for admin review.
type Notification struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Action      string    `json:"action"`
	Details     string    `json:"details"`
	TargetSheet string    `json:"target_sheet,omitempty"`
	TargetRow   *int      `json:"target_row,omitempty"`
	MachineID   string    `json:"machine_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	ReadByAdmin bool      `json:"read_by_admin"`
}
