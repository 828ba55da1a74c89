package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"cmms-backend/internal/auth"
	"cmms-backend/internal/machines"
	"cmms-backend/internal/notification"
	"cmms-backend/internal/prefs"
	"cmms-backend/internal/session"
	"cmms-backend/internal/syncer"
)

// Deps holds shared dependencies for API handlers.
type Deps struct {
	Users         *auth.Users
	Tokens        *auth.Tokens
	Sessions      *session.Controller
	Machines      *machines.Service
	Sync          *syncer.Manager
	Notifications *notification.Log
	Subscriptions *notification.Subscriptions
	Favorites     *prefs.Favorites
	History       *prefs.History
	WebPush       *webpush.Options
}

// Handler serves the API routes.
type Handler struct {
	Deps
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d}
}
