package database

import "time"

type NotificationType string

const (
	NotificationLike                NotificationType = "LIKE"
	NotificationComment             NotificationType = "COMMENT"
	NotificationFollow              NotificationType = "FOLLOW"
	NotificationMessage             NotificationType = "MESSAGE"
	NotificationSystem              NotificationType = "SYSTEM"
	NotificationAccountUpdate       NotificationType = "ACCOUNT_UPDATE"
	NotificationSecurityAlert       NotificationType = "SECURITY_ALERT"
	NotificationFeatureAnnouncement NotificationType = "FEATURE_ANNOUNCEMENT"
)

// Valid reports whether t is one of the types the notifications table accepts.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow, NotificationMessage,
		NotificationSystem, NotificationAccountUpdate, NotificationSecurityAlert, NotificationFeatureAnnouncement:
		return true
	}
	return false
}

type Account struct {
	Id        int
	Name      string
	Email     string
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Sender struct {
	Id     int    `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type Notification struct {
	Id          int              `json:"id"`
	Type        NotificationType `json:"type"`
	Content     string           `json:"content"`
	RecipientId int              `json:"recipientId"`
	SenderId    *int             `json:"senderId,omitempty"`
	Sender      *Sender          `json:"sender,omitempty"`
	PoemId      *int             `json:"poemId,omitempty"`
	Link        *string          `json:"link,omitempty"`
	IsRead      bool             `json:"isRead"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type CreateNotificationParams struct {
	Type        NotificationType
	Content     string
	RecipientId int
	SenderId    *int
	PoemId      *int
	Link        *string
}

type NotificationPreferences struct {
	EmailLikes    bool `json:"emailLikes"`
	EmailComments bool `json:"emailComments"`
	EmailFollows  bool `json:"emailFollows"`
	PushLikes     bool `json:"pushLikes"`
	PushComments  bool `json:"pushComments"`
	PushFollows   bool `json:"pushFollows"`
}

// UpdatePreferencesParams leaves a preference untouched when its field is nil.
type UpdatePreferencesParams struct {
	EmailLikes    *bool `json:"emailLikes"`
	EmailComments *bool `json:"emailComments"`
	EmailFollows  *bool `json:"emailFollows"`
	PushLikes     *bool `json:"pushLikes"`
	PushComments  *bool `json:"pushComments"`
	PushFollows   *bool `json:"pushFollows"`
}

type ChatMessage struct {
	Id        int       `json:"id"`
	ChatId    int       `json:"chatId"`
	SenderId  int       `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
