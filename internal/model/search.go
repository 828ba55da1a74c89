package model

import "time"

// SearchCriteria is the filter set accepted by the search engine.
// Empty fields do not filter.
type SearchCriteria struct {
	Text      string `json:"text,omitempty" form:"q"`
	TypeID    string `json:"type_id,omitempty" form:"type"`
	MachineID string `json:"machine_id,omitempty" form:"machine_id"`
	Status    string `json:"status,omitempty" form:"status"`
	Location  string `json:"location,omitempty" form:"location"`
}

// Empty reports whether no criterion is set.
func (c SearchCriteria) Empty() bool {
	return c == SearchCriteria{}
}

// SearchHistoryEntry is one remembered search.
type SearchHistoryEntry struct {
	SearchCriteria
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
}
