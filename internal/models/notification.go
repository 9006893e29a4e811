package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a fire-and-forget message for a user. Immutable once
// created apart from the read flag.
type Notification struct {
	BaseModel
	RecipientID string         `gorm:"size:36;index;not null" json:"recipientId"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Message     string         `gorm:"type:text" json:"message"`
	Category    string         `gorm:"size:50;index" json:"category"`
	Data        datatypes.JSON `json:"data,omitempty"`
	IsRead      bool           `gorm:"default:false" json:"isRead"`
	ReadAt      *time.Time     `json:"readAt,omitempty"`

	// Relations
	Recipient User `gorm:"foreignKey:RecipientID" json:"-"`
}
