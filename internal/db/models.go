package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message types accepted by the chat ledger.
const (
	MessageTypeText  = "text"
	MessageTypeEmoji = "emoji"
	MessageTypeLike  = "like"
)

// Notification types produced by the fanout.
const (
	NotificationLike      = "like"
	NotificationSuperLike = "super_like"
	NotificationMatch     = "match"
	NotificationMessage   = "message"
)

// Models lists every table owned by the service, in migration order.
func Models() []any {
	return []any{
		&Account{},
		&Profile{},
		&Like{},
		&Match{},
		&Message{},
		&Notification{},
		&UserStatus{},
		&OutboxEvent{},
	}
}

// Account is the identity record. Its ID is the subject carried in session
// tokens and doubles as the profile primary key.
type Account struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (a *Account) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Profile holds the demographic and preference attributes of one user.
//
// Invariants:
//   - ID equals the owning Account.ID and never changes.
//   - Age is within [18, 100] (validated by the service, checked by the table).
//   - Photos is ordered; entries are bucket keys under "<id>/".
type Profile struct {
	ID         string                      `gorm:"primaryKey;size:36" json:"id"`
	Email      string                      `gorm:"size:128" json:"email"`
	FirstName  string                      `gorm:"size:64;not null" json:"first_name"`
	Age        int                         `gorm:"not null;check:age >= 18 AND age <= 100" json:"age"`
	Bio        string                      `gorm:"type:text" json:"bio"`
	City       string                      `gorm:"size:128" json:"city"`
	Latitude   *float64                    `json:"latitude,omitempty"`
	Longitude  *float64                    `json:"longitude,omitempty"`
	Interests  datatypes.JSONSlice[string] `json:"interests"`
	Photos     datatypes.JSONSlice[string] `json:"photos"`
	LookingFor string                      `gorm:"size:32;index" json:"looking_for"`
	Education  *string                     `gorm:"size:128" json:"education,omitempty"`
	JobTitle   *string                     `gorm:"size:128" json:"job_title,omitempty"`
	Height     *int                        `json:"height,omitempty"`
	Smoking    *string                     `gorm:"size:32" json:"smoking,omitempty"`
	Drinking   *string                     `gorm:"size:32" json:"drinking,omitempty"`
	Religion   *string                     `gorm:"size:64" json:"religion,omitempty"`
	CreatedAt  time.Time                   `gorm:"autoCreateTime;index:idx_profiles_created,sort:desc" json:"created_at"`
	UpdatedAt  time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Like is a directed edge liker -> liked.
//
// Indexes:
//   - idx_likes_pair(liker_id, liked_id) UNIQUE: one like per ordered pair,
//     also serves the reciprocity lookup of the match deriver.
//   - idx_likes_liked_created(liked_id, created_at DESC): "who liked me" lists.
type Like struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	LikerID     string    `gorm:"size:36;not null;uniqueIndex:idx_likes_pair,priority:1" json:"liker_id"`
	LikedID     string    `gorm:"size:36;not null;uniqueIndex:idx_likes_pair,priority:2;index:idx_likes_liked_created,priority:1" json:"liked_id"`
	IsSuperLike bool      `gorm:"not null" json:"is_super_like"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_likes_liked_created,priority:2,sort:desc" json:"created_at"`
}

func (l *Like) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Match is the symmetric relationship between two profiles, stored with
// User1ID < User2ID so the unordered pair maps to exactly one row.
type Match struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	User1ID   string    `gorm:"size:36;not null;uniqueIndex:idx_matches_pair,priority:1" json:"user1_id"`
	User2ID   string    `gorm:"size:36;not null;uniqueIndex:idx_matches_pair,priority:2;index" json:"user2_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (m *Match) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Involves reports whether userID is one of the two participants.
func (m *Match) Involves(userID string) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// Other returns the participant that is not userID, and false when userID
// is not a participant.
func (m *Match) Other(userID string) (string, bool) {
	switch userID {
	case m.User1ID:
		return m.User2ID, true
	case m.User2ID:
		return m.User1ID, true
	}
	return "", false
}

type Message struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	MatchID     string     `gorm:"size:36;not null;index:idx_messages_match_created,priority:1" json:"match_id"`
	SenderID    string     `gorm:"size:36;not null" json:"sender_id"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	MessageType string     `gorm:"size:16;not null" json:"message_type"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index:idx_messages_match_created,priority:2" json:"created_at"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type Notification struct {
	ID        string            `gorm:"primaryKey;size:36" json:"id"`
	UserID    string            `gorm:"size:36;not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Type      string            `gorm:"size:16;not null" json:"type"`
	Title     string            `gorm:"size:128;not null" json:"title"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Data      datatypes.JSONMap `json:"data"`
	Read      bool              `gorm:"not null" json:"read"`
	CreatedAt time.Time         `gorm:"autoCreateTime;index:idx_notifications_user_created,priority:2,sort:desc" json:"created_at"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// UserStatus is the presence row of a user.
type UserStatus struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"user_id"`
	IsOnline  bool      `gorm:"not null" json:"is_online"`
	LastSeen  time.Time `json:"last_seen"`
	IsTyping  bool      `gorm:"not null" json:"is_typing"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserStatus) TableName() string { return "user_status" }

// OutboxEvent is a committed row change waiting to be published on the
// event bus. ID is assigned by the database and gives the commit order.
type OutboxEvent struct {
	ID          uint64            `gorm:"primaryKey;autoIncrement"`
	EventID     string            `gorm:"size:26;uniqueIndex;not null"`
	Entity      string            `gorm:"size:32;not null"`
	Op          string            `gorm:"size:8;not null"`
	Row         datatypes.JSON    `gorm:"not null"`
	Scope       datatypes.JSONMap `gorm:"not null"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
	PublishedAt *time.Time        `gorm:"index"`
}
