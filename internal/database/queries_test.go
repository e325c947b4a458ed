package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*PgPlatformRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "sqlmock new")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "expected all queries to run")
		db.Close()
	})

	return newPgPlatformRepository(db), mock
}

func q(query string) string {
	return regexp.QuoteMeta(query)
}

var notificationRowColumns = []string{
	"id", "type", "content", "recipient_id", "sender_id", "poem_id", "link", "is_read", "created_at", "name", "avatar",
}

func TestGetChatParticipants(t *testing.T) {
	ctx := context.Background()

	t.Run("returns participants", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(q(getChatParticipantsQuery)).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id"}).
				AddRow(7, 1).
				AddRow(7, 2))

		participants, err := repo.GetChatParticipants(ctx, 7)
		assert.NoError(t, err)
		assert.Equal(t, []int{1, 2}, participants)
	})

	t.Run("chat without participants", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(q(getChatParticipantsQuery)).
			WithArgs(8).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id"}).AddRow(8, nil))

		participants, err := repo.GetChatParticipants(ctx, 8)
		assert.NoError(t, err)
		assert.Empty(t, participants)
	})

	t.Run("chat not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(q(getChatParticipantsQuery)).
			WithArgs(9).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id"}))

		_, err := repo.GetChatParticipants(ctx, 9)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(q(getChatParticipantsQuery)).
			WithArgs(10).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.GetChatParticipants(ctx, 10)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateNotification(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	sender, poem, link := 4, 11, "/poems/11"

	t.Run("with sender", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(q(createNotificationQuery)).
			WithArgs("LIKE", "Dana liked your poem", 5, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(notificationRowColumns).
				AddRow(1, "LIKE", "Dana liked your poem", 5, sender, poem, link, false, now, "Dana", nil))

		n, err := repo.CreateNotification(ctx, CreateNotificationParams{
			Type:        NotificationLike,
			Content:     "Dana liked your poem",
			RecipientId: 5,
			SenderId:    &sender,
			PoemId:      &poem,
			Link:        &link,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n.Id)
		assert.Equal(t, NotificationLike, n.Type)
		assert.Equal(t, 5, n.RecipientId)
		assert.False(t, n.IsRead, "expected new notification to be unread")
		require.NotNil(t, n.Sender)
		assert.Equal(t, "Dana", n.Sender.Name)
		assert.Equal(t, &poem, n.PoemId)
		assert.Equal(t, &link, n.Link)
	})

	t.Run("system notification without sender", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(q(createNotificationQuery)).
			WillReturnRows(sqlmock.NewRows(notificationRowColumns).
				AddRow(2, "SYSTEM", "Maintenance\ntonight", 5, nil, nil, nil, false, now, nil, nil))

		n, err := repo.CreateNotification(ctx, CreateNotificationParams{
			Type:        NotificationSystem,
			Content:     "Maintenance\ntonight",
			RecipientId: 5,
		})
		require.NoError(t, err)
		assert.Nil(t, n.SenderId)
		assert.Nil(t, n.Sender)
		assert.Nil(t, n.Link)
	})

	t.Run("insert fails", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(q(createNotificationQuery)).WillReturnError(errors.New("foreign key violation"))

		_, err := repo.CreateNotification(ctx, CreateNotificationParams{Type: NotificationFollow, RecipientId: 99})
		assert.ErrorContains(t, err, "create notification")
	})
}

func TestListNotifications(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(q(countNotificationsQuery)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(q(listNotificationsQuery)).
		WithArgs(5, defaultNotificationLimit, defaultNotificationLimit).
		WillReturnRows(sqlmock.NewRows(notificationRowColumns).
			AddRow(3, "FOLLOW", "Dana started following you", 5, 4, nil, "/profile/4", false, now, "Dana", "a.png"))

	notifications, total, err := repo.ListNotifications(ctx, 5, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	require.Len(t, notifications, 1)
	assert.Equal(t, NotificationFollow, notifications[0].Type)
	assert.Equal(t, "a.png", notifications[0].Sender.Avatar)
}

func TestMarkNotificationRead(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(q(markNotificationReadQuery)).
			WithArgs(3, 5).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.MarkNotificationRead(ctx, 3, 5)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("mark all", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(q(markAllNotificationsReadQuery)).
			WithArgs(5).
			WillReturnResult(sqlmock.NewResult(0, 4))

		n, err := repo.MarkAllNotificationsRead(ctx, 5)
		assert.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}

func TestNotificationPreferences(t *testing.T) {
	ctx := context.Background()
	cols := []string{"email_likes", "email_comments", "email_follows", "push_likes", "push_comments", "push_follows"}

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(q(getPreferencesQuery)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(true, true, true, true, true, true))
	off := false
	mock.ExpectQuery(q(updatePreferencesQuery)).
		WithArgs(5, nil, nil, nil, false, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(true, true, true, false, true, true))

	prefs, err := repo.GetNotificationPreferences(ctx, 5)
	require.NoError(t, err)
	assert.True(t, prefs.PushLikes)

	prefs, err = repo.UpdateNotificationPreferences(ctx, 5, UpdatePreferencesParams{PushLikes: &off})
	require.NoError(t, err)
	assert.False(t, prefs.PushLikes)
	assert.True(t, prefs.PushFollows)
}

func TestLikeAndFollow(t *testing.T) {
	ctx := context.Background()

	repo, mock := newMockRepository(t)
	mock.ExpectExec(q(likePoemQuery)).
		WithArgs(11, 4, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(likePoemQuery)).
		WithArgs(11, 4, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q(followAccountQuery)).
		WithArgs(4, 5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	liked, err := repo.LikePoem(ctx, 11, 4)
	assert.NoError(t, err)
	assert.True(t, liked, "expected first like to insert a row")

	liked, err = repo.LikePoem(ctx, 11, 4)
	assert.NoError(t, err)
	assert.False(t, liked, "expected duplicate like to be ignored")

	followed, err := repo.FollowAccount(ctx, 4, 5)
	assert.NoError(t, err)
	assert.True(t, followed)
}

func TestGetAccountById(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(q(getAccountQuery)).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "avatar", "created_at", "updated_at"}).
			AddRow(4, "Dana", "dana@example.com", "", now, now))
	mock.ExpectQuery(q(getAccountQuery)).
		WithArgs(404).
		WillReturnError(sql.ErrNoRows)

	a, err := repo.GetAccountById(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Dana", a.Name)

	_, err = repo.GetAccountById(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAccountIds(t *testing.T) {
	ctx := context.Background()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(q(listAllAccountIdsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))
	mock.ExpectQuery(q(listAccountIdsQuery)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	ids, err := repo.ListAccountIds(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids)

	ids, err = repo.ListAccountIds(ctx, []int{2, 42})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ids)
}

func TestPageBounds(t *testing.T) {
	tcases := []struct {
		name        string
		page, limit int
		wantPage    int
		wantLimit   int
	}{
		{name: "defaults", page: 0, limit: 0, wantPage: 1, wantLimit: 20},
		{name: "negative page", page: -3, limit: 10, wantPage: 1, wantLimit: 10},
		{name: "capped limit", page: 4, limit: 500, wantPage: 4, wantLimit: 100},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			page, limit := PageBounds(tc.page, tc.limit)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantLimit, limit)
		})
	}
}
