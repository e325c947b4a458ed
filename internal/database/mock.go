package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPlatformRepository struct {
	mock.Mock
}

func (m *MockPlatformRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockPlatformRepository) GetAccountById(ctx context.Context, accountId int) (Account, error) {
	args := m.Called(ctx, accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockPlatformRepository) ListAccountIds(ctx context.Context, ids []int) ([]int, error) {
	args := m.Called(ctx, ids)
	if res, ok := args.Get(0).([]int); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockPlatformRepository) GetChatParticipants(ctx context.Context, chatId int) ([]int, error) {
	args := m.Called(ctx, chatId)
	if res, ok := args.Get(0).([]int); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockPlatformRepository) IsChatParticipant(ctx context.Context, chatId, accountId int) (bool, error) {
	args := m.Called(ctx, chatId, accountId)
	return args.Bool(0), args.Error(1)
}
func (m *MockPlatformRepository) CreateChatMessage(ctx context.Context, msg ChatMessage) (ChatMessage, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(ChatMessage), args.Error(1)
}
func (m *MockPlatformRepository) CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockPlatformRepository) ListNotifications(ctx context.Context, recipientId, page, limit int) ([]Notification, int, error) {
	args := m.Called(ctx, recipientId, page, limit)
	if res, ok := args.Get(0).([]Notification); ok {
		return res, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}
func (m *MockPlatformRepository) MarkNotificationRead(ctx context.Context, id, recipientId int) (Notification, error) {
	args := m.Called(ctx, id, recipientId)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockPlatformRepository) MarkAllNotificationsRead(ctx context.Context, recipientId int) (int64, error) {
	args := m.Called(ctx, recipientId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockPlatformRepository) GetNotificationPreferences(ctx context.Context, accountId int) (NotificationPreferences, error) {
	args := m.Called(ctx, accountId)
	return args.Get(0).(NotificationPreferences), args.Error(1)
}
func (m *MockPlatformRepository) UpdateNotificationPreferences(ctx context.Context, accountId int, params UpdatePreferencesParams) (NotificationPreferences, error) {
	args := m.Called(ctx, accountId, params)
	return args.Get(0).(NotificationPreferences), args.Error(1)
}
func (m *MockPlatformRepository) GetPoemAuthor(ctx context.Context, poemId int) (int, error) {
	args := m.Called(ctx, poemId)
	return args.Int(0), args.Error(1)
}
func (m *MockPlatformRepository) LikePoem(ctx context.Context, poemId, accountId int) (bool, error) {
	args := m.Called(ctx, poemId, accountId)
	return args.Bool(0), args.Error(1)
}
func (m *MockPlatformRepository) FollowAccount(ctx context.Context, followerId, followingId int) (bool, error) {
	args := m.Called(ctx, followerId, followingId)
	return args.Bool(0), args.Error(1)
}
