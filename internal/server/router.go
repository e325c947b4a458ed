package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/npezzotti/versehub/internal/database"
	"github.com/npezzotti/versehub/internal/stats"
)

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrNotParticipant = errors.New("sender is not a chat participant")
)

// ParticipantLookup resolves the members of a chat. It is called for every
// envelope so membership changes take effect immediately.
type ParticipantLookup interface {
	GetChatParticipants(ctx context.Context, chatId int) ([]int, error)
}

type Router struct {
	registry     Sender
	participants ParticipantLookup
	log          *log.Logger
	stats        stats.StatsProvider
}

func NewRouter(registry Sender, participants ParticipantLookup, logger *log.Logger, su stats.StatsProvider) *Router {
	return &Router{
		registry:     registry,
		participants: participants,
		log:          logger,
		stats:        su,
	}
}

// Route fans an inbound envelope out to the chat's participants. Failures
// are logged and the envelope is dropped; the sender's connection stays open.
func (rt *Router) Route(ctx context.Context, msg *ClientMessage) {
	var out *ServerMessage
	switch msg.Type {
	case TypeNewMessage:
		out = NewChatMessage(msg.ChatId, msg.UserId, msg.Content, msg.Message)
	case TypeTyping:
		out = NewTyping(msg.ChatId, msg.UserId)
	case TypeReadReceipt:
		out = NewReadReceipt(msg.ChatId, msg.MessageId, msg.UserId)
	default:
		rt.log.Printf("unsupported envelope type %q from user %d", msg.Type, msg.UserId)
		rt.stats.Incr(stats.EnvelopesDropped)
		rt.reply(msg, ErrMessage(msg.ChatId, "unsupported message type"))
		return
	}

	if _, err := rt.Broadcast(ctx, msg.ChatId, msg.UserId, out); err != nil {
		rt.log.Printf("route %s for chat %d: %v", msg.Type, msg.ChatId, err)
		if errors.Is(err, ErrNotParticipant) {
			rt.reply(msg, ErrMessage(msg.ChatId, "not a participant of this chat"))
		}
	}
}

// Broadcast sends out to every online participant of chatId, the sender
// included, and returns how many connections accepted it. senderId must be
// a participant.
func (rt *Router) Broadcast(ctx context.Context, chatId, senderId int, out *ServerMessage) (int, error) {
	participants, err := rt.participants.GetChatParticipants(ctx, chatId)
	if err != nil {
		rt.stats.Incr(stats.EnvelopesDropped)
		if errors.Is(err, database.ErrNotFound) {
			return 0, fmt.Errorf("%w: %d", ErrChatNotFound, chatId)
		}
		return 0, fmt.Errorf("lookup participants: %w", err)
	}

	if !slices.Contains(participants, senderId) {
		rt.stats.Incr(stats.EnvelopesDropped)
		return 0, fmt.Errorf("%w: user %d, chat %d", ErrNotParticipant, senderId, chatId)
	}

	delivered := 0
	for _, id := range participants {
		if rt.registry.Send(id, out) {
			delivered++
		}
	}

	rt.stats.Incr(stats.EnvelopesRouted)
	return delivered, nil
}

func (rt *Router) reply(msg *ClientMessage, out *ServerMessage) {
	if msg.client != nil {
		msg.client.queueMessage(out)
	}
}
