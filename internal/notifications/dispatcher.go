// Package notifications persists and reads donor/recipient notifications.
package notifications

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"organ-donation-server/internal/models"
)

// Dispatcher writes notification rows. It satisfies workflow.Notifier.
type Dispatcher struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(db *gorm.DB, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{db: db, logger: logger}
}

// Send persists a notification for a user. The caller decides whether a
// failure matters; the workflow engine swallows it.
func (d *Dispatcher) Send(userID, title, message, category string) error {
	n := models.Notification{
		RecipientID: userID,
		Title:       title,
		Message:     message,
		Category:    category,
	}
	if err := d.db.Create(&n).Error; err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	return nil
}

// SendWithData persists a notification carrying structured metadata, such as
// the appointment id a scheduling message refers to.
func (d *Dispatcher) SendWithData(userID, title, message, category string, data map[string]interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}
	n := models.Notification{
		RecipientID: userID,
		Title:       title,
		Message:     message,
		Category:    category,
		Data:        datatypes.JSON(raw),
	}
	if err := d.db.Create(&n).Error; err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	return nil
}

// ListForUser returns a user's notifications, newest first.
func (d *Dispatcher) ListForUser(userID string) ([]models.Notification, error) {
	var out []models.Notification
	if err := d.db.Where("recipient_id = ?", userID).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags a notification as read. The userID guard keeps users from
// touching each other's notifications.
func (d *Dispatcher) MarkRead(id, userID string) error {
	var n models.Notification
	if err := d.db.First(&n, "id = ? AND recipient_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return gorm.ErrRecordNotFound
		}
		return fmt.Errorf("load notification: %w", err)
	}
	if n.IsRead {
		return nil
	}
	now := time.Now()
	n.IsRead = true
	n.ReadAt = &now
	if err := d.db.Save(&n).Error; err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}
