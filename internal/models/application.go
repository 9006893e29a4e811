package models

import (
	"time"
)

// DonationApplication represents a donor's application as it moves through the
// approval pipeline. The workflow status is stored twice: Status is the
// canonical column, RequestStatus is the legacy column older clients still
// read. The two must never diverge; the workflow engine writes both in a
// single UPDATE.
type DonationApplication struct {
	BaseModel
	DonorID       string `gorm:"size:36;index;not null" json:"donorId"`
	Status        string `gorm:"column:status;size:40;index;default:'PENDING'" json:"status"`
	RequestStatus string `gorm:"column:request_status;size:40;default:'PENDING'" json:"requestStatus"`

	OrganType      string `gorm:"size:50" json:"organType"`
	BloodGroup     string `gorm:"size:5" json:"bloodGroup"`
	MedicalHistory string `gorm:"type:text" json:"medicalHistory,omitempty"`

	SubmittedAt time.Time `json:"submittedAt"`

	// Annotations attached by actors at specific transitions. Each is
	// append-only by convention; a later stage never overwrites an earlier
	// stage's text.
	DoctorComment      string `gorm:"type:text" json:"doctorComment,omitempty"`
	AdminComment       string `gorm:"type:text" json:"adminComment,omitempty"`
	FinalDoctorComment string `gorm:"type:text" json:"finalDoctorComment,omitempty"`
	FinalAdminNotes    string `gorm:"type:text" json:"finalAdminNotes,omitempty"`
	EvaluationNotes    string `gorm:"type:text" json:"evaluationNotes,omitempty"`

	// Weak reference to the appointment currently driving the evaluation
	// phase. Lookup only, the appointment is not owned by the application.
	CurrentAppointmentID string `gorm:"size:36" json:"currentAppointmentId,omitempty"`

	RejectionReason string     `gorm:"type:text" json:"rejectionReason,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`

	// Relations
	Donor User `gorm:"foreignKey:DonorID" json:"-"`
}
