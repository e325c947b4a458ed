package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

type PlatformRepository interface {
	Ping(ctx context.Context) error
	GetAccountById(ctx context.Context, accountId int) (Account, error)
	ListAccountIds(ctx context.Context, ids []int) ([]int, error)
	GetChatParticipants(ctx context.Context, chatId int) ([]int, error)
	IsChatParticipant(ctx context.Context, chatId, accountId int) (bool, error)
	CreateChatMessage(ctx context.Context, msg ChatMessage) (ChatMessage, error)
	CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error)
	ListNotifications(ctx context.Context, recipientId, page, limit int) ([]Notification, int, error)
	MarkNotificationRead(ctx context.Context, id, recipientId int) (Notification, error)
	MarkAllNotificationsRead(ctx context.Context, recipientId int) (int64, error)
	GetNotificationPreferences(ctx context.Context, accountId int) (NotificationPreferences, error)
	UpdateNotificationPreferences(ctx context.Context, accountId int, params UpdatePreferencesParams) (NotificationPreferences, error)
	GetPoemAuthor(ctx context.Context, poemId int) (int, error)
	LikePoem(ctx context.Context, poemId, accountId int) (bool, error)
	FollowAccount(ctx context.Context, followerId, followingId int) (bool, error)
}
