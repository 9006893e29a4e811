package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"organ-donation-server/internal/appointments"
	"organ-donation-server/internal/middleware"
	"organ-donation-server/internal/models"
	"organ-donation-server/internal/status"
	"organ-donation-server/internal/utils"
	"organ-donation-server/internal/workflow"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Service *appointments.Service
	Engine  *workflow.Engine
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(service *appointments.Service, engine *workflow.Engine) *AppointmentHandler {
	return &AppointmentHandler{Service: service, Engine: engine}
}

// CreateDonorAppointmentRequest represents the request body for scheduling a
// donor appointment.
type CreateDonorAppointmentRequest struct {
	DonorID  string    `json:"donorId" binding:"required,uuid"`
	DoctorID string    `json:"doctorId" binding:"required,uuid"`
	Date     time.Time `json:"date" binding:"required"`
	Time     string    `json:"time" binding:"required"`
	Purpose  string    `json:"purpose"`
}

// CreateDonorAppointment handles a doctor or admin scheduling a donor's
// medical evaluation appointment. Subjects never schedule their own visits.
func (h *AppointmentHandler) CreateDonorAppointment(c *gin.Context) {
	var req CreateDonorAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if req.Date.Before(time.Now()) {
		utils.BadRequest(c, "Appointment date must be in the future.")
		return
	}

	appt, err := h.Service.CreateDonorAppointment(appointments.CreateDonorAppointmentInput{
		DonorID:  req.DonorID,
		DoctorID: req.DoctorID,
		Date:     req.Date,
		Time:     req.Time,
		Purpose:  req.Purpose,
	})
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	utils.Created(c, "Appointment created successfully", appt)
}

// CreateRecipientAppointmentRequest represents the request body for
// scheduling a recipient appointment. RecipientID may be an account id or a
// recipient-profile id.
type CreateRecipientAppointmentRequest struct {
	RecipientID string    `json:"recipientId" binding:"required,uuid"`
	DoctorID    string    `json:"doctorId" binding:"required,uuid"`
	Date        time.Time `json:"date" binding:"required"`
	Time        string    `json:"time" binding:"required"`
	Purpose     string    `json:"purpose"`
}

// CreateRecipientAppointment handles scheduling a recipient visit.
func (h *AppointmentHandler) CreateRecipientAppointment(c *gin.Context) {
	var req CreateRecipientAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if req.Date.Before(time.Now()) {
		utils.BadRequest(c, "Appointment date must be in the future.")
		return
	}

	appt, err := h.Service.CreateRecipientAppointment(appointments.CreateRecipientAppointmentInput{
		RecipientID: req.RecipientID,
		DoctorID:    req.DoctorID,
		Date:        req.Date,
		Time:        req.Time,
		Purpose:     req.Purpose,
	})
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	utils.Created(c, "Appointment created successfully", appt)
}

// GetAppointmentsForUser handles fetching appointments for the logged-in user.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRoleFromContext(c)

	appts, err := h.Service.ListForUser(userID, userRole)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", appts)
}

// GetAppointmentByID handles fetching a single appointment. Accessible by
// the involved subject, the doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appt, err := h.Service.GetAppointment(c.Param("id"))
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)

	involved := userID == appt.DonorID || userID == appt.RecipientID || userID == appt.DoctorID
	if userRole != models.RoleAdmin && !involved {
		utils.Forbidden(c, "You are not authorized to view this appointment")
		return
	}

	utils.Success(c, "Appointment fetched successfully", appt)
}

// GetSchedulingEligibility reports whether appointments may currently be
// scheduled for the logged-in user. Re-derived on every call; eligibility
// flips whenever the application transitions.
func (h *AppointmentHandler) GetSchedulingEligibility(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRoleFromContext(c)

	if userRole != models.RoleDonor {
		utils.Success(c, "Eligibility computed", gin.H{"canSchedule": true})
		return
	}

	st := status.Unknown
	if app, err := h.Engine.ActiveApplicationForDonor(userID); err == nil {
		st = status.Resolve(app.Status)
	} else if !errors.Is(err, workflow.ErrNotFound) {
		respondWorkflowError(c, err)
		return
	}

	utils.Success(c, "Eligibility computed", gin.H{
		"canSchedule": workflow.CanScheduleAppointments(st, workflow.RoleDonor),
		"status":      st,
	})
}

// CompleteAppointmentRequest represents the request body for completing an
// appointment, optionally attaching evaluation notes.
type CompleteAppointmentRequest struct {
	Notes string `json:"notes"`
}

// CompleteAppointment handles a doctor or admin marking an appointment
// completed. For donor appointments this finishes the evaluation phase of
// the linked application.
func (h *AppointmentHandler) CompleteAppointment(c *gin.Context) {
	var req CompleteAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	appt, err := h.Service.CompleteAppointmentWithEvaluation(c.Param("id"), req.Notes)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	utils.Success(c, "Appointment completed successfully", appt)
}

// CancelAppointment handles a doctor or admin cancelling a scheduled
// appointment.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	appt, err := h.Service.CancelAppointment(c.Param("id"))
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	utils.Success(c, "Appointment cancelled successfully", appt)
}

// RescheduleAppointmentRequest represents the request body for rescheduling.
type RescheduleAppointmentRequest struct {
	Date    time.Time `json:"date"`
	Time    string    `json:"time"`
	Purpose string    `json:"purpose"`
}

// RescheduleAppointment handles moving a scheduled appointment. Field-only;
// the appointment status and the linked application are untouched.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	var req RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	if !req.Date.IsZero() && req.Date.Before(time.Now()) {
		utils.BadRequest(c, "New appointment date must be in the future.")
		return
	}

	appt, err := h.Service.UpdateAppointment(c.Param("id"), appointments.RescheduleInput{
		Date:    req.Date,
		Time:    req.Time,
		Purpose: req.Purpose,
	})
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	utils.Success(c, "Appointment rescheduled successfully", appt)
}
