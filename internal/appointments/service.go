// Package appointments manages the appointment lifecycle and its coupling to
// the donation application workflow: scheduling a donor appointment starts
// the medical evaluation phase, completing it finishes the phase.
package appointments

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"organ-donation-server/internal/models"
	"organ-donation-server/internal/notifications"
	"organ-donation-server/internal/workflow"
)

// Service creates, reschedules, cancels and completes appointments. The
// appointment write is always the primary, durable effect; the linked
// application transition is attempted afterwards and logged on failure,
// never rolled back.
type Service struct {
	db         *gorm.DB
	engine     *workflow.Engine
	dispatcher *notifications.Dispatcher
	logger     *zap.Logger
}

// NewService creates an appointment Service.
func NewService(db *gorm.DB, engine *workflow.Engine, dispatcher *notifications.Dispatcher, logger *zap.Logger) *Service {
	return &Service{db: db, engine: engine, dispatcher: dispatcher, logger: logger}
}

// CreateDonorAppointmentInput is the data needed to schedule a donor visit.
type CreateDonorAppointmentInput struct {
	DonorID  string
	DoctorID string
	Date     time.Time
	Time     string
	Purpose  string
}

// CreateRecipientAppointmentInput is the data needed to schedule a recipient
// visit. RecipientID may be either the recipient's account id or a
// recipient-profile id; the service resolves it before persisting.
type CreateRecipientAppointmentInput struct {
	RecipientID string
	DoctorID    string
	Date        time.Time
	Time        string
	Purpose     string
}

// RescheduleInput carries the fields a reschedule may change.
type RescheduleInput struct {
	Date    time.Time
	Time    string
	Purpose string
}

// CreateDonorAppointment persists a scheduled donor appointment, links it to
// the donor's active application, and then starts the evaluation phase via
// the transition table. The transition is best-effort: the appointment
// already exists and is not rolled back if the application cannot advance.
func (s *Service) CreateDonorAppointment(in CreateDonorAppointmentInput) (*models.Appointment, error) {
	if in.DonorID == "" || in.DoctorID == "" || in.Date.IsZero() || in.Time == "" {
		return nil, fmt.Errorf("%w: donor appointment requires donorId, doctorId, date and time", workflow.ErrMissingPayload)
	}

	appt := models.Appointment{
		DonorID:  in.DonorID,
		DoctorID: in.DoctorID,
		Date:     in.Date,
		Time:     in.Time,
		Purpose:  in.Purpose,
		Type:     models.AppointmentTypeDonor,
		Status:   models.AppointmentScheduled,
	}
	if err := s.db.Create(&appt).Error; err != nil {
		return nil, fmt.Errorf("%w: create appointment: %v", workflow.ErrPersistence, err)
	}

	s.logger.Info("donor appointment scheduled",
		zap.String("appointment_id", appt.ID),
		zap.String("donor_id", in.DonorID),
		zap.String("doctor_id", in.DoctorID))

	// Secondary effects: link the appointment and start the evaluation.
	// Attempted, logged on failure, never rolled back.
	if app, err := s.engine.ActiveApplicationForDonor(in.DonorID); err != nil {
		s.logger.Warn("no active application to link appointment to",
			zap.String("appointment_id", appt.ID),
			zap.String("donor_id", in.DonorID),
			zap.Error(err))
	} else if err := s.engine.SetCurrentAppointment(app.ID, appt.ID); err != nil {
		s.logger.Warn("failed to link appointment to application",
			zap.String("appointment_id", appt.ID),
			zap.String("application_id", app.ID),
			zap.Error(err))
	}

	if _, err := s.engine.ApplyActionForDonor(in.DonorID, workflow.RoleSystem, workflow.ActionScheduleEvaluation, workflow.Payload{}); err != nil {
		s.logger.Warn("evaluation start transition not applied",
			zap.String("appointment_id", appt.ID),
			zap.String("donor_id", in.DonorID),
			zap.Error(err))
	}

	return &appt, nil
}

// CreateRecipientAppointment persists a scheduled recipient appointment.
// Recipients have no approval pipeline, so there is no transition side
// effect; only the subject id has to be resolved first.
func (s *Service) CreateRecipientAppointment(in CreateRecipientAppointmentInput) (*models.Appointment, error) {
	if in.RecipientID == "" || in.DoctorID == "" || in.Date.IsZero() || in.Time == "" {
		return nil, fmt.Errorf("%w: recipient appointment requires recipientId, doctorId, date and time", workflow.ErrMissingPayload)
	}

	subjectID, err := s.resolveRecipientSubject(in.RecipientID)
	if err != nil {
		return nil, err
	}

	appt := models.Appointment{
		RecipientID: subjectID,
		DoctorID:    in.DoctorID,
		Date:        in.Date,
		Time:        in.Time,
		Purpose:     in.Purpose,
		Type:        models.AppointmentTypeRecipient,
		Status:      models.AppointmentScheduled,
	}
	if err := s.db.Create(&appt).Error; err != nil {
		return nil, fmt.Errorf("%w: create appointment: %v", workflow.ErrPersistence, err)
	}

	if err := s.dispatcher.SendWithData(subjectID,
		"Appointment Scheduled",
		"The hospital has scheduled an appointment for you.",
		"appointment",
		map[string]interface{}{"appointmentId": appt.ID, "date": in.Date.Format("2006-01-02"), "time": in.Time},
	); err != nil {
		s.logger.Warn("appointment notification failed",
			zap.String("appointment_id", appt.ID),
			zap.Error(err))
	}

	return &appt, nil
}

// resolveRecipientSubject normalizes the stored subject reference at write
// time: the recipient's account id is always preferred; the profile id is
// stored only when no account can be found, which is logged as unresolved.
func (s *Service) resolveRecipientSubject(rawID string) (string, error) {
	var u models.User
	err := s.db.First(&u, "id = ? AND role = ?", rawID, models.RoleRecipient).Error
	if err == nil {
		return u.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: resolve recipient: %v", workflow.ErrPersistence, err)
	}

	var p models.RecipientProfile
	if err := s.db.First(&p, "id = ?", rawID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: recipient %s", workflow.ErrNotFound, rawID)
		}
		return "", fmt.Errorf("%w: resolve recipient profile: %v", workflow.ErrPersistence, err)
	}
	if p.UserID != "" {
		return p.UserID, nil
	}
	s.logger.Warn("recipient profile has no linked account, storing profile id",
		zap.String("profile_id", p.ID))
	return p.ID, nil
}

// GetAppointment loads an appointment by id.
func (s *Service) GetAppointment(id string) (*models.Appointment, error) {
	var appt models.Appointment
	if err := s.db.First(&appt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: appointment %s", workflow.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: load appointment: %v", workflow.ErrPersistence, err)
	}
	return &appt, nil
}

// ListForUser returns the appointments visible to a user, soonest first.
// Admins see everything.
func (s *Service) ListForUser(userID string, role models.Role) ([]models.Appointment, error) {
	q := s.db.Order("date asc, time asc")
	switch role {
	case models.RoleDonor:
		q = q.Where("donor_id = ?", userID)
	case models.RoleRecipient:
		q = q.Where("recipient_id = ?", userID)
	case models.RoleDoctor:
		q = q.Where("doctor_id = ?", userID)
	}
	var out []models.Appointment
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%w: list appointments: %v", workflow.ErrPersistence, err)
	}
	return out, nil
}

// CompleteAppointmentWithEvaluation marks an appointment completed and, for
// donor appointments, finishes the evaluation phase of the linked
// application. Completing an already-completed appointment is a no-op, so
// the application can never double-advance.
func (s *Service) CompleteAppointmentWithEvaluation(id, notes string) (*models.Appointment, error) {
	appt, err := s.GetAppointment(id)
	if err != nil {
		return nil, err
	}
	if appt.Status == models.AppointmentCompleted {
		return appt, nil
	}
	if appt.Status == models.AppointmentCancelled {
		return nil, fmt.Errorf("%w: appointment %s is cancelled", workflow.ErrInvalidTransition, id)
	}

	updates := map[string]interface{}{"status": models.AppointmentCompleted}
	if notes != "" {
		updates["notes"] = notes
	}
	tx := s.db.Model(&models.Appointment{}).
		Where("id = ? AND status = ?", id, models.AppointmentScheduled).
		Updates(updates)
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: complete appointment: %v", workflow.ErrPersistence, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: appointment %s changed state", workflow.ErrConcurrentModification, id)
	}

	s.logger.Info("appointment completed",
		zap.String("appointment_id", id),
		zap.String("type", string(appt.Type)))

	if appt.Type == models.AppointmentTypeDonor {
		if _, err := s.engine.ApplyActionForDonor(appt.DonorID, workflow.RoleSystem, workflow.ActionCompleteEvaluation, workflow.Payload{Notes: notes}); err != nil {
			s.logger.Warn("evaluation completion transition not applied",
				zap.String("appointment_id", id),
				zap.String("donor_id", appt.DonorID),
				zap.Error(err))
		}
	}

	return s.GetAppointment(id)
}

// CancelAppointment cancels a scheduled appointment. Terminal appointments
// cannot be cancelled; there is no edge between completed and cancelled.
func (s *Service) CancelAppointment(id string) (*models.Appointment, error) {
	appt, err := s.GetAppointment(id)
	if err != nil {
		return nil, err
	}
	if appt.IsTerminal() {
		return nil, fmt.Errorf("%w: appointment %s is already %s", workflow.ErrInvalidTransition, id, appt.Status)
	}

	tx := s.db.Model(&models.Appointment{}).
		Where("id = ? AND status = ?", id, models.AppointmentScheduled).
		Update("status", models.AppointmentCancelled)
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: cancel appointment: %v", workflow.ErrPersistence, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: appointment %s changed state", workflow.ErrConcurrentModification, id)
	}

	return s.GetAppointment(id)
}

// UpdateAppointment reschedules an appointment. Field-only: no status change
// and no application side effect.
func (s *Service) UpdateAppointment(id string, in RescheduleInput) (*models.Appointment, error) {
	appt, err := s.GetAppointment(id)
	if err != nil {
		return nil, err
	}
	if appt.Status != models.AppointmentScheduled {
		return nil, fmt.Errorf("%w: only scheduled appointments can be rescheduled", workflow.ErrInvalidTransition)
	}

	if !in.Date.IsZero() {
		appt.Date = in.Date
	}
	if in.Time != "" {
		appt.Time = in.Time
	}
	if in.Purpose != "" {
		appt.Purpose = in.Purpose
	}
	if err := s.db.Save(appt).Error; err != nil {
		return nil, fmt.Errorf("%w: reschedule appointment: %v", workflow.ErrPersistence, err)
	}
	return appt, nil
}
