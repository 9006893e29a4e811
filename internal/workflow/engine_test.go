package workflow

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"organ-donation-server/internal/models"
	"organ-donation-server/internal/status"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

type recordedNotice struct {
	userID   string
	title    string
	message  string
	category string
}

type recordingNotifier struct {
	sent []recordedNotice
	err  error
}

func (r *recordingNotifier) Send(userID, title, message, category string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, recordedNotice{userID: userID, title: title, message: message, category: category})
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB, *recordingNotifier) {
	t.Helper()
	db := newTestDB(t)
	notifier := &recordingNotifier{}
	return NewEngine(db, notifier, zap.NewNop(), 15), db, notifier
}

func seedApplication(t *testing.T, db *gorm.DB, donorID string, s status.Status) *models.DonationApplication {
	t.Helper()
	app := &models.DonationApplication{
		DonorID:       donorID,
		Status:        string(s),
		RequestStatus: string(s),
		OrganType:     "kidney",
		BloodGroup:    "O+",
		SubmittedAt:   time.Now(),
	}
	require.NoError(t, db.Create(app).Error)
	return app
}

func reload(t *testing.T, db *gorm.DB, id string) *models.DonationApplication {
	t.Helper()
	var app models.DonationApplication
	require.NoError(t, db.First(&app, "id = ?", id).Error)
	return &app
}

func TestSubmitApplicationSetsBothStatusColumns(t *testing.T) {
	engine, db, notifier := newTestEngine(t)

	app := &models.DonationApplication{
		DonorID:    uuid.NewString(),
		OrganType:  "kidney",
		BloodGroup: "A+",
	}
	require.NoError(t, engine.SubmitApplication(app))

	stored := reload(t, db, app.ID)
	assert.Equal(t, string(status.Pending), stored.Status)
	assert.Equal(t, string(status.Pending), stored.RequestStatus)
	assert.False(t, stored.SubmittedAt.IsZero())

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, app.DonorID, notifier.sent[0].userID)
}

func TestSubmitApplicationRejectsSecondActiveApplication(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	donorID := uuid.NewString()
	seedApplication(t, db, donorID, status.MedicalEvaluationInProgress)

	err := engine.SubmitApplication(&models.DonationApplication{DonorID: donorID, OrganType: "kidney"})
	assert.ErrorIs(t, err, ErrActiveApplicationExists)
}

func TestSubmitApplicationCooldown(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	donorID := uuid.NewString()

	rejected := seedApplication(t, db, donorID, status.InitialDoctorRejected)
	rejectedAt := time.Now().Add(-14 * 24 * time.Hour)
	require.NoError(t, db.Model(rejected).Update("rejected_at", rejectedAt).Error)

	err := engine.SubmitApplication(&models.DonationApplication{DonorID: donorID, OrganType: "kidney"})
	assert.ErrorIs(t, err, ErrCooldownActive)

	// Past the waiting period the donor may apply again, and the concluded
	// application is left exactly as it was.
	rejectedAt = time.Now().Add(-16 * 24 * time.Hour)
	require.NoError(t, db.Model(rejected).Update("rejected_at", rejectedAt).Error)

	fresh := &models.DonationApplication{DonorID: donorID, OrganType: "kidney"}
	require.NoError(t, engine.SubmitApplication(fresh))
	assert.Equal(t, string(status.Pending), reload(t, db, fresh.ID).Status)
	assert.Equal(t, string(status.InitialDoctorRejected), reload(t, db, rejected.ID).Status)
}

func TestDoctorApprovalPersistsAutoForward(t *testing.T) {
	engine, db, notifier := newTestEngine(t)
	app := seedApplication(t, db, uuid.NewString(), status.Pending)

	updated, err := engine.ApplyAction(app.ID, RoleDoctor, ActionApprove, Payload{Comment: "fit for evaluation"})
	require.NoError(t, err)

	// The intermediate doctor-approved state is never the resting state.
	assert.Equal(t, string(status.PendingInitialAdminApproval), updated.Status)
	assert.Equal(t, string(status.PendingInitialAdminApproval), updated.RequestStatus)
	assert.Equal(t, "fit for evaluation", updated.DoctorComment)
	require.Len(t, notifier.sent, 1)
}

func TestAliasStoredStatusStillTransitions(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	app := &models.DonationApplication{
		DonorID:       uuid.NewString(),
		Status:        "initially-approved",
		RequestStatus: "initially-approved",
		OrganType:     "liver",
		SubmittedAt:   time.Now(),
	}
	require.NoError(t, db.Create(app).Error)

	updated, err := engine.ApplyAction(app.ID, RoleSystem, ActionScheduleEvaluation, Payload{})
	require.NoError(t, err)
	assert.Equal(t, string(status.MedicalEvaluationInProgress), updated.Status)
	assert.Equal(t, string(status.MedicalEvaluationInProgress), updated.RequestStatus)
}

func TestRejectionRecordsReasonAndTimestamp(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	app := seedApplication(t, db, uuid.NewString(), status.Pending)

	before := time.Now().Add(-time.Second)
	updated, err := engine.ApplyAction(app.ID, RoleDoctor, ActionReject, Payload{Reason: "insufficient records"})
	require.NoError(t, err)

	assert.Equal(t, string(status.InitialDoctorRejected), updated.Status)
	assert.Equal(t, "insufficient records", updated.RejectionReason)
	require.NotNil(t, updated.RejectedAt)
	assert.True(t, updated.RejectedAt.After(before))
}

func TestAnnotationsAppendRatherThanOverwrite(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	app := seedApplication(t, db, uuid.NewString(), status.PendingInitialAdminApproval)
	require.NoError(t, db.Model(app).Update("admin_comment", "first pass").Error)
	app = reload(t, db, app.ID)

	updated, err := engine.ApplyActionFrom(app, RoleAdmin, ActionApprove, Payload{Comment: "cleared"})
	require.NoError(t, err)
	assert.Equal(t, "first pass\ncleared", updated.AdminComment)
}

func TestStaleReadSurfacesConcurrentModification(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	app := seedApplication(t, db, uuid.NewString(), status.Pending)
	stale := reload(t, db, app.ID)

	// Another actor wins the race.
	_, err := engine.ApplyAction(app.ID, RoleDoctor, ActionApprove, Payload{})
	require.NoError(t, err)

	_, err = engine.ApplyActionFrom(stale, RoleDoctor, ActionReject, Payload{Reason: "too late"})
	assert.ErrorIs(t, err, ErrConcurrentModification)

	// The winning transition is untouched.
	assert.Equal(t, string(status.PendingInitialAdminApproval), reload(t, db, app.ID).Status)
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	db := newTestDB(t)
	notifier := &recordingNotifier{err: errors.New("notification store down")}
	engine := NewEngine(db, notifier, zap.NewNop(), 15)

	app := seedApplication(t, db, uuid.NewString(), status.PendingInitialAdminApproval)
	updated, err := engine.ApplyAction(app.ID, RoleAdmin, ActionApprove, Payload{})
	require.NoError(t, err)
	assert.Equal(t, string(status.InitiallyApproved), updated.Status)
}

func TestApplyActionForDonorTargetsActiveApplication(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	donorID := uuid.NewString()

	concluded := seedApplication(t, db, donorID, status.InitialAdminRejected)
	concluded.SubmittedAt = time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, db.Model(concluded).Update("submitted_at", concluded.SubmittedAt).Error)
	active := seedApplication(t, db, donorID, status.InitiallyApproved)

	updated, err := engine.ApplyActionForDonor(donorID, RoleSystem, ActionScheduleEvaluation, Payload{})
	require.NoError(t, err)
	assert.Equal(t, active.ID, updated.ID)
	assert.Equal(t, string(status.MedicalEvaluationInProgress), updated.Status)
	assert.Equal(t, string(status.InitialAdminRejected), reload(t, db, concluded.ID).Status)
}

func TestApplyActionForDonorWithoutActiveApplication(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	donorID := uuid.NewString()
	seedApplication(t, db, donorID, status.FinalAdminRejected)

	_, err := engine.ApplyActionForDonor(donorID, RoleSystem, ActionScheduleEvaluation, Payload{})
	assert.ErrorIs(t, err, ErrNotFound)
}
