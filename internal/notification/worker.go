package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	mapset "github.com/deckarep/golang-set/v2"

	"cmms-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Directory lists the user accounts.
type Directory interface {
	List() []model.User
}

// WorkerPool delivers notifications to the push subscriptions of privileged users.
type WorkerPool struct {
	size    int
	jobs    chan model.Notification
	subs    *Subscriptions
	users   Directory
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs *Subscriptions, users Directory, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Notification, size*16),
		subs:    subs,
		users:   users,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case n := <-wp.jobs:
			wp.deliver(ctx, n)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues n for delivery. A full queue drops the push; the notification
// itself is already stored.
func (wp *WorkerPool) Dispatch(n model.Notification) {
	select {
	case wp.jobs <- n:
	default:
		log.Printf("Notification queue full, dropping push for %s", n.ID)
	}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	ID    string `json:"id"`
}

func (wp *WorkerPool) deliver(ctx context.Context, n model.Notification) {
	if wp.webpush == nil || wp.webpush.VAPIDPrivateKey == "" {
		return
	}

	reviewers := mapset.NewSet[string]()
	for _, u := range wp.users.List() {
		if u.Privileged() {
			reviewers.Add(u.Username)
		}
	}

	subs, err := wp.subs.List(ctx)
	if err != nil {
		log.Printf("Error fetching subscriptions: %v", err)
		return
	}

	payload, err := json.Marshal(pushPayload{
		Title: n.Action + " by " + n.Username,
		Body:  n.Details,
		ID:    n.ID,
	})
	if err != nil {
		log.Printf("Error encoding notification %s: %v", n.ID, err)
		return
	}

	for _, sub := range subs {
		if reviewers.Contains(sub.Username) {
			wp.sendNotification(ctx, sub, payload)
		}
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.subs.Delete(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
