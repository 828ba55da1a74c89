package session

import (
	"context"
	"log"
	"time"
)

// Sweeper deactivates expired sessions on a fixed interval.
type Sweeper struct {
	controller *Controller
	interval   time.Duration
}

// NewSweeper creates a sweeper for c.
func NewSweeper(c *Controller, interval time.Duration) *Sweeper {
	return &Sweeper{controller: c, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	log.Println("Starting session sweeper...")
	s.SweepOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Session sweeper shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// SweepOnce runs a single cleanup pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	expired, err := s.controller.Sweep(ctx)
	if err != nil {
		log.Printf("Session sweep failed: %v", err)
		return
	}
	if len(expired) > 0 {
		log.Printf("Expired %d sessions: %v", len(expired), expired)
	}
}
