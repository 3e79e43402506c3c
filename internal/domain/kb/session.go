package kb

import (
	"time"

	"gorm.io/datatypes"
)

// StoredMessage is the durable copy of one dialog turn. The live
// session rides in Redis; rows here survive session expiry for audits
// and escalation review.
type StoredMessage struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string         `gorm:"type:varchar(64);not null;index:idx_messages_session" json:"session_id"`
	UserID    string         `gorm:"type:varchar(64);not null;index:idx_messages_user" json:"user_id"`
	Role      string         `gorm:"type:varchar(16);not null" json:"role"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Meta      datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"meta"`
	CreatedAt time.Time      `gorm:"not null;default:now();index:idx_messages_created" json:"created_at"`
}

func (StoredMessage) TableName() string { return "messages" }

// SessionArchive is a snapshot of a finished session, written when a
// session resolves, escalates or ages out.
type SessionArchive struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID    string         `gorm:"type:varchar(64);not null;uniqueIndex:uq_session_archive" json:"session_id"`
	UserID       string         `gorm:"type:varchar(64);not null;index:idx_session_archive_user" json:"user_id"`
	State        string         `gorm:"type:varchar(32);not null" json:"state"`
	MessageCount int            `gorm:"not null;default:0" json:"message_count"`
	Snapshot     datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"snapshot"`
	StartedAt    time.Time      `gorm:"not null" json:"started_at"`
	ClosedAt     time.Time      `gorm:"not null;default:now()" json:"closed_at"`
}

func (SessionArchive) TableName() string { return "sessions_archive" }

// Escalation records a hand-off to a human operator together with the
// dialog context the operator needs.
type Escalation struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string         `gorm:"type:varchar(64);not null;index:idx_escalations_session" json:"session_id"`
	UserID    string         `gorm:"type:varchar(64);not null;index:idx_escalations_user" json:"user_id"`
	Reason    string         `gorm:"type:varchar(64);not null" json:"reason"`
	Question  string         `gorm:"type:text;not null" json:"question"`
	Context   datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"context"`
	CreatedAt time.Time      `gorm:"not null;default:now();index:idx_escalations_created" json:"created_at"`
}

func (Escalation) TableName() string { return "escalations" }

// UserProfile keeps the little per-user state that outlives sessions.
type UserProfile struct {
	UserID     string         `gorm:"type:varchar(64);primaryKey" json:"user_id"`
	Language   string         `gorm:"type:varchar(8);not null;default:'ru'" json:"language"`
	Attributes datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"attributes"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }
