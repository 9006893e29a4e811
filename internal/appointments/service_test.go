package appointments

import (
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
	"organ-donation-server/internal/notifications"
	"organ-donation-server/internal/status"
	"organ-donation-server/internal/workflow"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	log := zap.NewNop()
	dispatcher := notifications.NewDispatcher(db, log)
	engine := workflow.NewEngine(db, dispatcher, log, 15)
	return NewService(db, engine, dispatcher, log), db
}

func seedUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Email:     uuid.NewString() + "@example.com",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	}
	require.NoError(t, u.SetPassword("password123"))
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedApplicationAt(t *testing.T, db *gorm.DB, donorID string, s status.Status) *models.DonationApplication {
	t.Helper()
	app := &models.DonationApplication{
		DonorID:       donorID,
		Status:        string(s),
		RequestStatus: string(s),
		OrganType:     "kidney",
		SubmittedAt:   time.Now(),
	}
	require.NoError(t, db.Create(app).Error)
	return app
}

func reloadApplication(t *testing.T, db *gorm.DB, id string) *models.DonationApplication {
	t.Helper()
	var app models.DonationApplication
	require.NoError(t, db.First(&app, "id = ?", id).Error)
	return &app
}

func donorInput(donorID, doctorID string) CreateDonorAppointmentInput {
	return CreateDonorAppointmentInput{
		DonorID:  donorID,
		DoctorID: doctorID,
		Date:     time.Now().Add(72 * time.Hour),
		Time:     "10:30",
		Purpose:  "Medical evaluation",
	}
}

func TestCreateDonorAppointmentStartsEvaluation(t *testing.T) {
	svc, db := newTestService(t)
	donor := seedUser(t, db, models.RoleDonor)
	doctor := seedUser(t, db, models.RoleDoctor)
	app := seedApplicationAt(t, db, donor.ID, status.InitiallyApproved)

	appt, err := svc.CreateDonorAppointment(donorInput(donor.ID, doctor.ID))
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentScheduled, appt.Status)
	assert.Equal(t, models.AppointmentTypeDonor, appt.Type)

	stored := reloadApplication(t, db, app.ID)
	assert.Equal(t, string(status.MedicalEvaluationInProgress), stored.Status)
	assert.Equal(t, string(status.MedicalEvaluationInProgress), stored.RequestStatus)
	assert.Equal(t, appt.ID, stored.CurrentAppointmentID)
}

func TestCreateDonorAppointmentWithoutApplication(t *testing.T) {
	svc, db := newTestService(t)
	donor := seedUser(t, db, models.RoleDonor)
	doctor := seedUser(t, db, models.RoleDoctor)

	// The appointment is the primary effect; a missing application is logged,
	// not surfaced.
	appt, err := svc.CreateDonorAppointment(donorInput(donor.ID, doctor.ID))
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentScheduled, appt.Status)
}

func TestCreateDonorAppointmentRequiresFields(t *testing.T) {
	svc, _ := newTestService(t)

	in := donorInput(uuid.NewString(), uuid.NewString())
	in.Time = ""
	_, err := svc.CreateDonorAppointment(in)
	assert.ErrorIs(t, err, workflow.ErrMissingPayload)

	in = donorInput("", uuid.NewString())
	_, err = svc.CreateDonorAppointment(in)
	assert.ErrorIs(t, err, workflow.ErrMissingPayload)
}

func TestCompleteDonorAppointmentFinishesEvaluation(t *testing.T) {
	svc, db := newTestService(t)
	donor := seedUser(t, db, models.RoleDonor)
	doctor := seedUser(t, db, models.RoleDoctor)
	app := seedApplicationAt(t, db, donor.ID, status.InitiallyApproved)

	appt, err := svc.CreateDonorAppointment(donorInput(donor.ID, doctor.ID))
	require.NoError(t, err)

	completed, err := svc.CompleteAppointmentWithEvaluation(appt.ID, "all tests within range")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, completed.Status)
	assert.Equal(t, "all tests within range", completed.Notes)

	stored := reloadApplication(t, db, app.ID)
	assert.Equal(t, string(status.MedicalEvaluationCompleted), stored.Status)
	assert.Equal(t, "all tests within range", stored.EvaluationNotes)
}

func TestCompleteAppointmentIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	donor := seedUser(t, db, models.RoleDonor)
	doctor := seedUser(t, db, models.RoleDoctor)
	app := seedApplicationAt(t, db, donor.ID, status.InitiallyApproved)

	appt, err := svc.CreateDonorAppointment(donorInput(donor.ID, doctor.ID))
	require.NoError(t, err)
	_, err = svc.CompleteAppointmentWithEvaluation(appt.ID, "first notes")
	require.NoError(t, err)

	// A repeat completion is a no-op: no error, no second advance, no
	// overwritten notes.
	again, err := svc.CompleteAppointmentWithEvaluation(appt.ID, "second notes")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, again.Status)
	assert.Equal(t, "first notes", again.Notes)
	assert.Equal(t, string(status.MedicalEvaluationCompleted), reloadApplication(t, db, app.ID).Status)
}

func TestCancelAppointmentMonotonicity(t *testing.T) {
	svc, db := newTestService(t)
	donor := seedUser(t, db, models.RoleDonor)
	doctor := seedUser(t, db, models.RoleDoctor)

	appt, err := svc.CreateDonorAppointment(donorInput(donor.ID, doctor.ID))
	require.NoError(t, err)

	cancelled, err := svc.CancelAppointment(appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCancelled, cancelled.Status)

	_, err = svc.CancelAppointment(appt.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	// No edge from completed to cancelled either.
	other, err := svc.CreateDonorAppointment(donorInput(donor.ID, doctor.ID))
	require.NoError(t, err)
	_, err = svc.CompleteAppointmentWithEvaluation(other.ID, "")
	require.NoError(t, err)
	_, err = svc.CancelAppointment(other.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestRescheduleOnlyTouchesScheduledAppointments(t *testing.T) {
	svc, db := newTestService(t)
	donor := seedUser(t, db, models.RoleDonor)
	doctor := seedUser(t, db, models.RoleDoctor)

	appt, err := svc.CreateDonorAppointment(donorInput(donor.ID, doctor.ID))
	require.NoError(t, err)

	newDate := time.Now().Add(7 * 24 * time.Hour)
	updated, err := svc.UpdateAppointment(appt.ID, RescheduleInput{Date: newDate, Time: "14:00"})
	require.NoError(t, err)
	assert.Equal(t, "14:00", updated.Time)
	assert.Equal(t, models.AppointmentScheduled, updated.Status)
	assert.Equal(t, "Medical evaluation", updated.Purpose)

	_, err = svc.CancelAppointment(appt.ID)
	require.NoError(t, err)
	_, err = svc.UpdateAppointment(appt.ID, RescheduleInput{Time: "15:00"})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestRecipientAppointmentResolvesAccountID(t *testing.T) {
	svc, db := newTestService(t)
	doctor := seedUser(t, db, models.RoleDoctor)
	recipient := seedUser(t, db, models.RoleRecipient)

	appt, err := svc.CreateRecipientAppointment(CreateRecipientAppointmentInput{
		RecipientID: recipient.ID,
		DoctorID:    doctor.ID,
		Date:        time.Now().Add(48 * time.Hour),
		Time:        "09:00",
		Purpose:     "Pre-transplant consult",
	})
	require.NoError(t, err)
	assert.Equal(t, recipient.ID, appt.RecipientID)
	assert.Equal(t, models.AppointmentTypeRecipient, appt.Type)

	var notes []models.Notification
	require.NoError(t, db.Where("recipient_id = ?", recipient.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "Appointment Scheduled", notes[0].Title)
	assert.Contains(t, string(notes[0].Data), appt.ID)
}

func TestRecipientAppointmentResolvesProfileToAccount(t *testing.T) {
	svc, db := newTestService(t)
	doctor := seedUser(t, db, models.RoleDoctor)
	recipient := seedUser(t, db, models.RoleRecipient)

	profile := &models.RecipientProfile{
		UserID:      recipient.ID,
		FullName:    "Jordan Smith",
		OrganNeeded: "kidney",
		BloodGroup:  "B+",
	}
	require.NoError(t, db.Create(profile).Error)

	appt, err := svc.CreateRecipientAppointment(CreateRecipientAppointmentInput{
		RecipientID: profile.ID,
		DoctorID:    doctor.ID,
		Date:        time.Now().Add(48 * time.Hour),
		Time:        "11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, recipient.ID, appt.RecipientID)
}

func TestRecipientAppointmentFallsBackToProfileID(t *testing.T) {
	svc, db := newTestService(t)
	doctor := seedUser(t, db, models.RoleDoctor)

	profile := &models.RecipientProfile{
		FullName:    "Walk-in Recipient",
		OrganNeeded: "liver",
	}
	require.NoError(t, db.Create(profile).Error)

	appt, err := svc.CreateRecipientAppointment(CreateRecipientAppointmentInput{
		RecipientID: profile.ID,
		DoctorID:    doctor.ID,
		Date:        time.Now().Add(48 * time.Hour),
		Time:        "13:00",
	})
	require.NoError(t, err)
	assert.Equal(t, profile.ID, appt.RecipientID)
}

func TestRecipientAppointmentUnknownSubject(t *testing.T) {
	svc, db := newTestService(t)
	doctor := seedUser(t, db, models.RoleDoctor)

	_, err := svc.CreateRecipientAppointment(CreateRecipientAppointmentInput{
		RecipientID: uuid.NewString(),
		DoctorID:    doctor.ID,
		Date:        time.Now().Add(48 * time.Hour),
		Time:        "13:00",
	})
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestListForUserScopesByRole(t *testing.T) {
	svc, db := newTestService(t)
	donor := seedUser(t, db, models.RoleDonor)
	otherDonor := seedUser(t, db, models.RoleDonor)
	doctor := seedUser(t, db, models.RoleDoctor)

	_, err := svc.CreateDonorAppointment(donorInput(donor.ID, doctor.ID))
	require.NoError(t, err)
	_, err = svc.CreateDonorAppointment(donorInput(otherDonor.ID, doctor.ID))
	require.NoError(t, err)

	mine, err := svc.ListForUser(donor.ID, models.RoleDonor)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, donor.ID, mine[0].DonorID)

	doctorView, err := svc.ListForUser(doctor.ID, models.RoleDoctor)
	require.NoError(t, err)
	assert.Len(t, doctorView, 2)

	adminView, err := svc.ListForUser(uuid.NewString(), models.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, adminView, 2)
}
