package models

import "time"

// Contact message delivery states.
const (
	ContactStatusReceived = "received"
	ContactStatusSent     = "sent"
	ContactStatusFailed   = "failed"
)

// ContactMessage is a persisted contact form submission.
type ContactMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"not null" json:"email"`
	Subject   string    `gorm:"size:200" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Status    string    `gorm:"size:16;not null;default:received;index" json:"status"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	RemoteIP  string    `gorm:"size:64" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
