package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

const (
	getAccountQuery = "SELECT id, name, email, COALESCE(avatar, ''), created_at, updated_at FROM accounts " +
		"WHERE id = $1 LIMIT 1"
	listAllAccountIdsQuery   = "SELECT id FROM accounts ORDER BY id"
	listAccountIdsQuery      = "SELECT id FROM accounts WHERE id = ANY($1) ORDER BY id"
	getChatParticipantsQuery = "SELECT c.id, p.account_id FROM chats c " +
		"LEFT JOIN chat_participants p ON p.chat_id = c.id WHERE c.id = $1"
	isChatParticipantQuery = "SELECT EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $1 AND account_id = $2)"
	createChatMessageQuery = "INSERT INTO chat_messages (chat_id, sender_id, content, created_at) " +
		"VALUES ($1, $2, $3, $4) RETURNING id, chat_id, sender_id, content, created_at"

	notificationColumns = "n.id, n.type, n.content, n.recipient_id, n.sender_id, n.poem_id, n.link, n.is_read, n.created_at, " +
		"a.name, a.avatar"
	createNotificationQuery = "WITH n AS (" +
		"INSERT INTO notifications (type, content, recipient_id, sender_id, poem_id, link, is_read, created_at) " +
		"VALUES ($1, $2, $3, $4, $5, $6, false, $7) RETURNING *) " +
		"SELECT " + notificationColumns + " FROM n LEFT JOIN accounts a ON a.id = n.sender_id"
	countNotificationsQuery = "SELECT COUNT(*) FROM notifications WHERE recipient_id = $1"
	listNotificationsQuery  = "SELECT " + notificationColumns + " FROM notifications n " +
		"LEFT JOIN accounts a ON a.id = n.sender_id WHERE n.recipient_id = $1 " +
		"ORDER BY n.created_at DESC LIMIT $2 OFFSET $3"
	markNotificationReadQuery = "WITH n AS (" +
		"UPDATE notifications SET is_read = true WHERE id = $1 AND recipient_id = $2 RETURNING *) " +
		"SELECT " + notificationColumns + " FROM n LEFT JOIN accounts a ON a.id = n.sender_id"
	markAllNotificationsReadQuery = "UPDATE notifications SET is_read = true WHERE recipient_id = $1 AND is_read = false"

	preferenceColumns        = "email_likes, email_comments, email_follows, push_likes, push_comments, push_follows"
	getPreferencesQuery      = "SELECT " + preferenceColumns + " FROM accounts WHERE id = $1"
	updatePreferencesQuery   = "UPDATE accounts SET " +
		"email_likes = COALESCE($2, email_likes), " +
		"email_comments = COALESCE($3, email_comments), " +
		"email_follows = COALESCE($4, email_follows), " +
		"push_likes = COALESCE($5, push_likes), " +
		"push_comments = COALESCE($6, push_comments), " +
		"push_follows = COALESCE($7, push_follows), " +
		"updated_at = $8 WHERE id = $1 RETURNING " + preferenceColumns

	getPoemAuthorQuery = "SELECT author_id FROM poems WHERE id = $1"
	likePoemQuery      = "INSERT INTO poem_likes (poem_id, account_id, created_at) VALUES ($1, $2, $3) " +
		"ON CONFLICT DO NOTHING"
	followAccountQuery = "INSERT INTO follows (follower_id, following_id, created_at) VALUES ($1, $2, $3) " +
		"ON CONFLICT DO NOTHING"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (db *PgPlatformRepository) GetAccountById(ctx context.Context, accountId int) (Account, error) {
	row := db.conn.QueryRowContext(ctx, getAccountQuery, accountId)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Name,
		&a.Email,
		&a.Avatar,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, notFound(err)
}

// ListAccountIds returns the subset of ids that exist, or every account id
// when ids is empty.
func (db *PgPlatformRepository) ListAccountIds(ctx context.Context, ids []int) ([]int, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(ids) == 0 {
		rows, err = db.conn.QueryContext(ctx, listAllAccountIdsQuery)
	} else {
		rows, err = db.conn.QueryContext(ctx, listAccountIdsQuery, pq.Array(ids))
	}
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	defer rows.Close()

	res := make([]int, 0, len(ids))
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		res = append(res, id)
	}

	return res, rows.Err()
}

// GetChatParticipants returns ErrNotFound when the chat does not exist and an
// empty slice when it exists without participants.
func (db *PgPlatformRepository) GetChatParticipants(ctx context.Context, chatId int) ([]int, error) {
	rows, err := db.conn.QueryContext(ctx, getChatParticipantsQuery, chatId)
	if err != nil {
		return nil, fmt.Errorf("fetch chat participants: %w", err)
	}
	defer rows.Close()

	var (
		found        bool
		participants = make([]int, 0)
	)
	for rows.Next() {
		var (
			id        int
			accountId sql.NullInt64
		)
		if err := rows.Scan(&id, &accountId); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		found = true
		if accountId.Valid {
			participants = append(participants, int(accountId.Int64))
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if !found {
		return nil, fmt.Errorf("chat %d: %w", chatId, ErrNotFound)
	}

	return participants, nil
}

func (db *PgPlatformRepository) IsChatParticipant(ctx context.Context, chatId, accountId int) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, isChatParticipantQuery, chatId, accountId).Scan(&exists)
	return exists, err
}

func (db *PgPlatformRepository) CreateChatMessage(ctx context.Context, msg ChatMessage) (ChatMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	row := db.conn.QueryRowContext(
		ctx,
		createChatMessageQuery,
		msg.ChatId,
		msg.SenderId,
		msg.Content,
		msg.CreatedAt,
	)

	var m ChatMessage
	err := row.Scan(
		&m.Id,
		&m.ChatId,
		&m.SenderId,
		&m.Content,
		&m.CreatedAt,
	)

	return m, err
}

func scanNotification(s rowScanner) (Notification, error) {
	var (
		n          Notification
		senderId   sql.NullInt64
		poemId     sql.NullInt64
		link       sql.NullString
		senderName sql.NullString
		avatar     sql.NullString
	)

	err := s.Scan(
		&n.Id,
		&n.Type,
		&n.Content,
		&n.RecipientId,
		&senderId,
		&poemId,
		&link,
		&n.IsRead,
		&n.CreatedAt,
		&senderName,
		&avatar,
	)
	if err != nil {
		return Notification{}, err
	}

	if senderId.Valid {
		id := int(senderId.Int64)
		n.SenderId = &id
		n.Sender = &Sender{
			Id:     id,
			Name:   senderName.String,
			Avatar: avatar.String,
		}
	}
	if poemId.Valid {
		id := int(poemId.Int64)
		n.PoemId = &id
	}
	if link.Valid {
		n.Link = &link.String
	}

	return n, nil
}

func (db *PgPlatformRepository) CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error) {
	row := db.conn.QueryRowContext(
		ctx,
		createNotificationQuery,
		params.Type,
		params.Content,
		params.RecipientId,
		params.SenderId,
		params.PoemId,
		params.Link,
		time.Now().UTC(),
	)

	n, err := scanNotification(row)
	if err != nil {
		return Notification{}, fmt.Errorf("create notification: %w", err)
	}

	return n, nil
}

// PageBounds clamps a requested page and page size to the supported range.
func PageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	return page, min(limit, maxNotificationLimit)
}

func (db *PgPlatformRepository) ListNotifications(ctx context.Context, recipientId, page, limit int) ([]Notification, int, error) {
	page, limit = PageBounds(page, limit)

	var total int
	if err := db.conn.QueryRowContext(ctx, countNotificationsQuery, recipientId).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, listNotificationsQuery, recipientId, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan row: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return notifications, total, nil
}

func (db *PgPlatformRepository) MarkNotificationRead(ctx context.Context, id, recipientId int) (Notification, error) {
	row := db.conn.QueryRowContext(ctx, markNotificationReadQuery, id, recipientId)

	n, err := scanNotification(row)
	return n, notFound(err)
}

func (db *PgPlatformRepository) MarkAllNotificationsRead(ctx context.Context, recipientId int) (int64, error) {
	res, err := db.conn.ExecContext(ctx, markAllNotificationsReadQuery, recipientId)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (db *PgPlatformRepository) GetNotificationPreferences(ctx context.Context, accountId int) (NotificationPreferences, error) {
	row := db.conn.QueryRowContext(ctx, getPreferencesQuery, accountId)
	return scanPreferences(row)
}

func (db *PgPlatformRepository) UpdateNotificationPreferences(ctx context.Context, accountId int, params UpdatePreferencesParams) (NotificationPreferences, error) {
	row := db.conn.QueryRowContext(
		ctx,
		updatePreferencesQuery,
		accountId,
		params.EmailLikes,
		params.EmailComments,
		params.EmailFollows,
		params.PushLikes,
		params.PushComments,
		params.PushFollows,
		time.Now().UTC(),
	)
	return scanPreferences(row)
}

func scanPreferences(s rowScanner) (NotificationPreferences, error) {
	var p NotificationPreferences
	err := s.Scan(
		&p.EmailLikes,
		&p.EmailComments,
		&p.EmailFollows,
		&p.PushLikes,
		&p.PushComments,
		&p.PushFollows,
	)

	return p, notFound(err)
}

func (db *PgPlatformRepository) GetPoemAuthor(ctx context.Context, poemId int) (int, error) {
	var authorId int
	err := db.conn.QueryRowContext(ctx, getPoemAuthorQuery, poemId).Scan(&authorId)
	return authorId, notFound(err)
}

// LikePoem reports false when the account already liked the poem.
func (db *PgPlatformRepository) LikePoem(ctx context.Context, poemId, accountId int) (bool, error) {
	return db.insertIgnoringConflict(ctx, likePoemQuery, poemId, accountId, time.Now().UTC())
}

// FollowAccount reports false when the follow relationship already exists.
func (db *PgPlatformRepository) FollowAccount(ctx context.Context, followerId, followingId int) (bool, error) {
	return db.insertIgnoringConflict(ctx, followAccountQuery, followerId, followingId, time.Now().UTC())
}

func (db *PgPlatformRepository) insertIgnoringConflict(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}
