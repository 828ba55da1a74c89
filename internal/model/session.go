package model

import "time"

// Session is the login state of one user. Sessions are deactivated, never deleted.
type Session struct {
	Username  string     `json:"-"`
	Active    bool       `json:"active"`
	LoginTime *time.Time `json:"login_time,omitempty"`
}
