package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"organ-donation-server/internal/middleware"
	"organ-donation-server/internal/models"
	"organ-donation-server/internal/status"
	"organ-donation-server/internal/utils"
	"organ-donation-server/internal/workflow"
)

// ApplicationHandler handles donation application requests.
type ApplicationHandler struct {
	DB     *gorm.DB
	Engine *workflow.Engine
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(db *gorm.DB, engine *workflow.Engine) *ApplicationHandler {
	return &ApplicationHandler{DB: db, Engine: engine}
}

// ApplicationView decorates an application with the registry metadata the UI
// renders: label, color classification and pipeline progress.
type ApplicationView struct {
	models.DonationApplication
	StatusLabel      string `json:"statusLabel"`
	StatusColorClass string `json:"statusColorClass"`
	ProgressPercent  int    `json:"progressPercent"`
}

func newApplicationView(app models.DonationApplication) ApplicationView {
	st := status.Resolve(app.Status)
	return ApplicationView{
		DonationApplication: app,
		StatusLabel:         status.Label(st),
		StatusColorClass:    status.ColorClass(st),
		ProgressPercent:     status.ProgressPercent(st),
	}
}

// respondWorkflowError maps the workflow error taxonomy onto HTTP responses.
func respondWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		utils.NotFound(c, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrMissingPayload):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, workflow.ErrConcurrentModification),
		errors.Is(err, workflow.ErrCooldownActive),
		errors.Is(err, workflow.ErrActiveApplicationExists):
		utils.Conflict(c, err.Error())
	default:
		utils.InternalServerError(c, err.Error())
	}
}

// SubmitApplicationRequest represents the request body for submitting a
// donation application.
type SubmitApplicationRequest struct {
	OrganType      string `json:"organType" binding:"required"`
	BloodGroup     string `json:"bloodGroup" binding:"required"`
	MedicalHistory string `json:"medicalHistory"`
}

// SubmitApplication handles a donor submitting a new application.
func (h *ApplicationHandler) SubmitApplication(c *gin.Context) {
	var req SubmitApplicationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	donorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	app := models.DonationApplication{
		DonorID:        donorID,
		OrganType:      req.OrganType,
		BloodGroup:     req.BloodGroup,
		MedicalHistory: req.MedicalHistory,
		SubmittedAt:    time.Now(),
	}
	if err := h.Engine.SubmitApplication(&app); err != nil {
		respondWorkflowError(c, err)
		return
	}

	utils.Created(c, "Application submitted successfully", newApplicationView(app))
}

// GetMyApplications handles a donor fetching their own applications.
func (h *ApplicationHandler) GetMyApplications(c *gin.Context) {
	donorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	apps, err := h.Engine.ApplicationsForDonor(donorID)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	views := make([]ApplicationView, len(apps))
	for i, a := range apps {
		views[i] = newApplicationView(a)
	}
	utils.Success(c, "Applications fetched successfully", views)
}

// ListApplications handles doctors/admins listing applications, optionally
// filtered by status. The filter accepts legacy alias spellings.
func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	query := h.DB.Preload("Donor").Order("submitted_at asc")

	if raw := c.Query("status"); raw != "" {
		st := status.Resolve(raw)
		if st == status.Unknown {
			utils.BadRequest(c, "Unknown status filter: "+raw)
			return
		}
		query = query.Where("status = ?", string(st))
	}

	var apps []models.DonationApplication
	if err := query.Find(&apps).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch applications: "+err.Error())
		return
	}

	views := make([]ApplicationView, len(apps))
	for i, a := range apps {
		views[i] = newApplicationView(a)
	}
	utils.Success(c, "Applications fetched successfully", views)
}

// GetApplicationByID handles fetching a single application. Accessible by
// the owning donor, doctors, and admins.
func (h *ApplicationHandler) GetApplicationByID(c *gin.Context) {
	app, err := h.Engine.GetApplication(c.Param("id"))
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)
	if userRole == models.RoleDonor && userID != app.DonorID {
		utils.Forbidden(c, "You are not authorized to view this application")
		return
	}

	utils.Success(c, "Application fetched successfully", newApplicationView(*app))
}

// ReviewRequest represents a review decision at any of the review gates.
// Reason is required for rejections; Comment is an optional annotation.
type ReviewRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Comment  string `json:"comment"`
	Reason   string `json:"reason"`
}

func (r ReviewRequest) action() workflow.Action {
	if r.Decision == "reject" {
		return workflow.ActionReject
	}
	return workflow.ActionApprove
}

func (r ReviewRequest) payload() workflow.Payload {
	return workflow.Payload{Comment: r.Comment, Reason: r.Reason}
}

// DoctorReview handles the initial doctor review of a pending application.
// Approval auto-forwards into the administration queue.
func (h *ApplicationHandler) DoctorReview(c *gin.Context) {
	var req ReviewRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	app, err := h.Engine.ApplyAction(c.Param("id"), workflow.RoleDoctor, req.action(), req.payload())
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	utils.Success(c, "Review recorded successfully", newApplicationView(*app))
}

// AdminReview handles the initial administration review.
func (h *ApplicationHandler) AdminReview(c *gin.Context) {
	var req ReviewRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	app, err := h.Engine.ApplyAction(c.Param("id"), workflow.RoleAdmin, req.action(), req.payload())
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	utils.Success(c, "Review recorded successfully", newApplicationView(*app))
}

// FinalRecommendationRequest carries the doctor's closing comment after the
// medical evaluation.
type FinalRecommendationRequest struct {
	Comment string `json:"comment" binding:"required"`
}

// SubmitFinalRecommendation handles the doctor filing their final
// recommendation, moving the application into the final review queue.
func (h *ApplicationHandler) SubmitFinalRecommendation(c *gin.Context) {
	var req FinalRecommendationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	app, err := h.Engine.ApplyAction(c.Param("id"), workflow.RoleDoctor,
		workflow.ActionSubmitFinalRecommendation, workflow.Payload{Comment: req.Comment})
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	utils.Success(c, "Final recommendation recorded successfully", newApplicationView(*app))
}

// FinalReview handles the final administration decision. AdminReview and
// FinalReview share the request shape; the transition table tells them apart
// by the application's current status.
func (h *ApplicationHandler) FinalReview(c *gin.Context) {
	var req ReviewRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	app, err := h.Engine.ApplyAction(c.Param("id"), workflow.RoleAdmin, req.action(), req.payload())
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	utils.Success(c, "Final review recorded successfully", newApplicationView(*app))
}

// AddToWaitingList handles moving a finally-approved application onto the
// transplant waiting list.
func (h *ApplicationHandler) AddToWaitingList(c *gin.Context) {
	app, err := h.Engine.ApplyAction(c.Param("id"), workflow.RoleAdmin,
		workflow.ActionAddToWaitingList, workflow.Payload{})
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	utils.Success(c, "Application added to waiting list", newApplicationView(*app))
}

// MarkMatchFound handles recording a recipient match for a wait-listed donor.
func (h *ApplicationHandler) MarkMatchFound(c *gin.Context) {
	app, err := h.Engine.ApplyAction(c.Param("id"), workflow.RoleAdmin,
		workflow.ActionMatchFound, workflow.Payload{})
	if err != nil {
		respondWorkflowError(c, err)
		return
	}
	utils.Success(c, "Match recorded successfully", newApplicationView(*app))
}
