package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"organ-donation-server/internal/models"
	"organ-donation-server/internal/status"
)

// readAttempts is how often idempotent reads are retried before the failure
// is surfaced as transient.
const readAttempts = 3

// Notifier persists a donor-facing message. Delivery failures are logged and
// swallowed by the engine; they never fail the state change that produced
// them.
type Notifier interface {
	Send(userID, title, message, category string) error
}

// Engine applies transition-table results to stored applications. Every
// status write updates both the canonical status column and the legacy
// request_status column in one UPDATE, guarded by a compare-and-swap on the
// previously read status.
type Engine struct {
	db       *gorm.DB
	notifier Notifier
	logger   *zap.Logger
	cooldown time.Duration
}

// NewEngine creates a workflow engine. cooldownDays is the waiting period a
// rejected donor must sit out before submitting a new application.
func NewEngine(db *gorm.DB, notifier Notifier, logger *zap.Logger, cooldownDays int) *Engine {
	return &Engine{
		db:       db,
		notifier: notifier,
		logger:   logger,
		cooldown: time.Duration(cooldownDays) * 24 * time.Hour,
	}
}

// GetApplication loads an application by id. Transient read failures are
// retried a small fixed number of times.
func (e *Engine) GetApplication(id string) (*models.DonationApplication, error) {
	var app models.DonationApplication
	var err error
	for attempt := 0; attempt < readAttempts; attempt++ {
		err = e.db.First(&app, "id = ?", id).Error
		if err == nil {
			return &app, nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: application %s", ErrNotFound, id)
		}
	}
	return nil, fmt.Errorf("%w: load application: %v", ErrPersistence, err)
}

// ActiveApplicationForDonor returns the donor's current non-terminal
// application, or ErrNotFound when every application has concluded.
func (e *Engine) ActiveApplicationForDonor(donorID string) (*models.DonationApplication, error) {
	apps, err := e.ApplicationsForDonor(donorID)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if !status.IsTerminal(status.Resolve(apps[i].Status)) {
			return &apps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no active application for donor %s", ErrNotFound, donorID)
}

// ApplicationsForDonor lists a donor's applications, newest first.
func (e *Engine) ApplicationsForDonor(donorID string) ([]models.DonationApplication, error) {
	var apps []models.DonationApplication
	var err error
	for attempt := 0; attempt < readAttempts; attempt++ {
		err = e.db.Where("donor_id = ?", donorID).Order("submitted_at desc").Find(&apps).Error
		if err == nil {
			return apps, nil
		}
	}
	return nil, fmt.Errorf("%w: list applications: %v", ErrPersistence, err)
}

// SubmitApplication creates a brand-new PENDING application for a donor. It
// enforces the single-active-application invariant and the rejection
// cool-down; a previously concluded application is left untouched.
func (e *Engine) SubmitApplication(app *models.DonationApplication) error {
	prev, err := e.ApplicationsForDonor(app.DonorID)
	if err != nil {
		return err
	}
	for i := range prev {
		if !status.IsTerminal(status.Resolve(prev[i].Status)) {
			return ErrActiveApplicationExists
		}
	}
	if len(prev) > 0 {
		latest := prev[0]
		if status.IsRejection(status.Resolve(latest.Status)) && latest.RejectedAt != nil {
			if time.Since(*latest.RejectedAt) < e.cooldown {
				eligibleAt := latest.RejectedAt.Add(e.cooldown)
				return fmt.Errorf("%w: eligible again at %s", ErrCooldownActive, eligibleAt.Format(time.RFC3339))
			}
		}
	}

	app.Status = string(status.Pending)
	app.RequestStatus = string(status.Pending)
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = time.Now()
	}
	if err := e.db.Create(app).Error; err != nil {
		return fmt.Errorf("%w: create application: %v", ErrPersistence, err)
	}

	e.logger.Info("application submitted",
		zap.String("application_id", app.ID),
		zap.String("donor_id", app.DonorID))
	e.notify(app.DonorID, Notification{
		Title:    "Application Received",
		Message:  "Your donation application was received and is pending doctor review.",
		Category: "application",
	})
	return nil
}

// ApplyAction runs a transition against the application with the given id
// and returns the updated record. The primary status change either fully
// succeeds or the error is surfaced to the caller; only the notification is
// best-effort.
func (e *Engine) ApplyAction(appID string, role Role, action Action, p Payload) (*models.DonationApplication, error) {
	app, err := e.GetApplication(appID)
	if err != nil {
		return nil, err
	}
	return e.applyTo(app, role, action, p)
}

// ApplyActionForDonor runs a transition against the donor's active
// application. Used by the appointment lifecycle, which knows the donor but
// not the application id.
func (e *Engine) ApplyActionForDonor(donorID string, role Role, action Action, p Payload) (*models.DonationApplication, error) {
	app, err := e.ActiveApplicationForDonor(donorID)
	if err != nil {
		return nil, err
	}
	return e.applyTo(app, role, action, p)
}

// ApplyActionFrom runs a transition using an application record the caller
// already holds. If the stored status changed since that read, the write
// fails with ErrConcurrentModification instead of silently overwriting.
func (e *Engine) ApplyActionFrom(app *models.DonationApplication, role Role, action Action, p Payload) (*models.DonationApplication, error) {
	return e.applyTo(app, role, action, p)
}

func (e *Engine) applyTo(app *models.DonationApplication, role Role, action Action, p Payload) (*models.DonationApplication, error) {
	current := status.Resolve(app.Status)
	res, err := Apply(current, role, action, p)
	if err != nil {
		return nil, err
	}

	// Sequence the writes: each step's compare-and-swap expects the status
	// written by the previous step, so an auto-forward can never act on a
	// stale read and a racing actor surfaces as ErrConcurrentModification.
	// The first CAS compares against the raw stored value, which may be a
	// legacy alias spelling; later steps compare against the canonical value
	// the previous step just wrote.
	now := time.Now()
	expected := app.Status
	for i, step := range res.Steps {
		updates := map[string]interface{}{
			"status":         string(step.To),
			"request_status": string(step.To),
		}
		if i == 0 {
			for col, val := range annotationUpdates(app, step.To, p, now) {
				updates[col] = val
			}
		}
		tx := e.db.Model(&models.DonationApplication{}).
			Where("id = ? AND status = ?", app.ID, expected).
			Updates(updates)
		if tx.Error != nil {
			return nil, fmt.Errorf("%w: write status %s: %v", ErrPersistence, step.To, tx.Error)
		}
		if tx.RowsAffected == 0 {
			return nil, fmt.Errorf("%w: application %s no longer at %s", ErrConcurrentModification, app.ID, expected)
		}
		expected = string(step.To)
	}

	e.logger.Info("application transition applied",
		zap.String("application_id", app.ID),
		zap.String("from", string(current)),
		zap.String("to", string(res.Final)),
		zap.String("role", string(role)),
		zap.String("action", string(action)))

	for _, n := range res.Notifications() {
		e.notify(app.DonorID, n)
	}
	return e.GetApplication(app.ID)
}

// annotationUpdates maps the action's payload onto the annotation column for
// the stage being entered. Free-text columns are appended to, never
// overwritten.
func annotationUpdates(app *models.DonationApplication, to status.Status, p Payload, now time.Time) map[string]interface{} {
	u := map[string]interface{}{}
	switch to {
	case status.InitialDoctorApproved, status.InitialDoctorRejected:
		if p.Comment != "" {
			u["doctor_comment"] = appendNote(app.DoctorComment, p.Comment)
		}
	case status.InitiallyApproved, status.InitialAdminRejected:
		if p.Comment != "" {
			u["admin_comment"] = appendNote(app.AdminComment, p.Comment)
		}
	case status.MedicalEvaluationCompleted:
		if p.Notes != "" {
			u["evaluation_notes"] = appendNote(app.EvaluationNotes, p.Notes)
		}
	case status.PendingFinalAdminReview:
		if p.Comment != "" {
			u["final_doctor_comment"] = appendNote(app.FinalDoctorComment, p.Comment)
		}
	case status.FinalAdminApproved, status.FinalAdminRejected:
		if p.Comment != "" {
			u["final_admin_notes"] = appendNote(app.FinalAdminNotes, p.Comment)
		}
	}
	if status.IsRejection(to) {
		u["rejection_reason"] = p.Reason
		u["rejected_at"] = now
	}
	return u
}

func appendNote(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + "\n" + addition
}

// SetCurrentAppointment records the appointment currently driving the
// evaluation phase on the donor's active application.
func (e *Engine) SetCurrentAppointment(appID, appointmentID string) error {
	tx := e.db.Model(&models.DonationApplication{}).
		Where("id = ?", appID).
		Update("current_appointment_id", appointmentID)
	if tx.Error != nil {
		return fmt.Errorf("%w: link appointment: %v", ErrPersistence, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: application %s", ErrNotFound, appID)
	}
	return nil
}

func (e *Engine) notify(userID string, n Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(userID, n.Title, n.Message, n.Category); err != nil {
		e.logger.Warn("notification dispatch failed",
			zap.String("user_id", userID),
			zap.String("title", n.Title),
			zap.Error(err))
	}
}
