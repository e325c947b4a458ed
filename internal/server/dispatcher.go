package server

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/npezzotti/versehub/internal/database"
	"github.com/npezzotti/versehub/internal/stats"
)

var (
	ErrPersistence         = errors.New("persist notification")
	ErrInvalidNotification = errors.New("invalid notification")
)

// NotificationStore is the persistence the dispatcher writes through.
type NotificationStore interface {
	CreateNotification(ctx context.Context, params database.CreateNotificationParams) (database.Notification, error)
	ListAccountIds(ctx context.Context, ids []int) ([]int, error)
}

type NotificationParams struct {
	Kind        database.NotificationType
	Content     string
	RecipientId int
	SenderId    *int
	PoemId      *int
	Link        *string
}

type SystemNotificationParams struct {
	Kind    database.NotificationType
	Title   string
	Content string
	Link    *string
	// UserIds restricts the recipients; empty means every account.
	UserIds []int
}

type Dispatcher struct {
	store    NotificationStore
	registry Sender
	log      *log.Logger
	stats    stats.StatsProvider
}

func NewDispatcher(store NotificationStore, registry Sender, logger *log.Logger, su stats.StatsProvider) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		log:      logger,
		stats:    su,
	}
}

// Dispatch persists a notification and then pushes it to the recipient if
// they are online. Only the persistence step can fail the call.
func (d *Dispatcher) Dispatch(ctx context.Context, p NotificationParams) (database.Notification, error) {
	if !p.Kind.Valid() {
		return database.Notification{}, fmt.Errorf("%w: unknown type %q", ErrInvalidNotification, p.Kind)
	}
	if p.RecipientId <= 0 {
		return database.Notification{}, fmt.Errorf("%w: missing recipient", ErrInvalidNotification)
	}

	n, err := d.store.CreateNotification(ctx, database.CreateNotificationParams{
		Type:        p.Kind,
		Content:     p.Content,
		RecipientId: p.RecipientId,
		SenderId:    p.SenderId,
		PoemId:      p.PoemId,
		Link:        p.Link,
	})
	if err != nil {
		return database.Notification{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	d.stats.Incr(stats.NotificationsPersisted)

	d.push(n)
	return n, nil
}

func (d *Dispatcher) push(n database.Notification) {
	defer func() {
		if err := recover(); err != nil {
			d.log.Printf("push notification %d: %v", n.Id, err)
		}
	}()

	if d.registry.Send(n.RecipientId, NewNotificationMessage(n)) {
		d.stats.Incr(stats.NotificationsPushed)
	}
}

func isSystemKind(k database.NotificationType) bool {
	switch k {
	case database.NotificationSystem, database.NotificationAccountUpdate,
		database.NotificationSecurityAlert, database.NotificationFeatureAnnouncement:
		return true
	}
	return false
}

// DispatchSystem sends a sender-less notification to each recipient and
// stops at the first persistence failure.
func (d *Dispatcher) DispatchSystem(ctx context.Context, p SystemNotificationParams) ([]database.Notification, error) {
	if !isSystemKind(p.Kind) {
		return nil, fmt.Errorf("%w: %q is not a system type", ErrInvalidNotification, p.Kind)
	}

	recipients, err := d.store.ListAccountIds(ctx, p.UserIds)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	content := p.Title + "\n" + p.Content
	sent := make([]database.Notification, 0, len(recipients))
	for _, id := range recipients {
		n, err := d.Dispatch(ctx, NotificationParams{
			Kind:        p.Kind,
			Content:     content,
			RecipientId: id,
			Link:        p.Link,
		})
		if err != nil {
			return sent, err
		}
		sent = append(sent, n)
	}

	return sent, nil
}
