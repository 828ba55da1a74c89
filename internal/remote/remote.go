// Package remote talks to the repository that holds the authoritative workbook.
package remote

import (
	"errors"
	"net/http"
	"time"
)

var (
	// ErrNotFound means the path does not exist on the remote branch.
	ErrNotFound = errors.New("remote path not found")
	// ErrUnauthorized means the credential was rejected.
	ErrUnauthorized = errors.New("remote rejected credentials")
)

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
