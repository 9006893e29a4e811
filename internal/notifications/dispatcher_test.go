package notifications

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"organ-donation-server/internal/models"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return NewDispatcher(db, zap.NewNop()), db
}

func TestSendAndList(t *testing.T) {
	d, _ := newTestDispatcher(t)
	userID := uuid.NewString()

	require.NoError(t, d.Send(userID, "Application Received", "Pending doctor review.", "application"))
	require.NoError(t, d.Send(uuid.NewString(), "Other", "Not yours.", "application"))

	got, err := d.ListForUser(userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Application Received", got[0].Title)
	assert.False(t, got[0].IsRead)
}

func TestSendWithDataStoresPayload(t *testing.T) {
	d, _ := newTestDispatcher(t)
	userID := uuid.NewString()

	require.NoError(t, d.SendWithData(userID, "Appointment Scheduled", "See details.", "appointment",
		map[string]interface{}{"appointmentId": "abc-123"}))

	got, err := d.ListForUser(userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0].Data), "abc-123")
}

func TestMarkRead(t *testing.T) {
	d, _ := newTestDispatcher(t)
	userID := uuid.NewString()
	require.NoError(t, d.Send(userID, "Title", "Message", "application"))

	got, err := d.ListForUser(userID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, d.MarkRead(got[0].ID, userID))
	got, err = d.ListForUser(userID)
	require.NoError(t, err)
	assert.True(t, got[0].IsRead)
	require.NotNil(t, got[0].ReadAt)

	// Marking again is a no-op.
	require.NoError(t, d.MarkRead(got[0].ID, userID))

	// Another user cannot touch it, and missing ids surface as not found.
	assert.ErrorIs(t, d.MarkRead(got[0].ID, uuid.NewString()), gorm.ErrRecordNotFound)
	assert.ErrorIs(t, d.MarkRead(uuid.NewString(), userID), gorm.ErrRecordNotFound)
}
