package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// AppointmentType determines which side of the program the appointment
// belongs to, and whether completing it advances a donation application.
type AppointmentType string

const (
	AppointmentTypeDonor     AppointmentType = "donor"
	AppointmentTypeRecipient AppointmentType = "recipient"
)

// Appointment represents a scheduled hospital visit. Exactly one of DonorID
// and RecipientID is set, matching Type.
type Appointment struct {
	BaseModel
	DonorID     string            `gorm:"size:36;index" json:"donorId,omitempty"`
	RecipientID string            `gorm:"size:36;index" json:"recipientId,omitempty"`
	DoctorID    string            `gorm:"size:36;index;not null" json:"doctorId"`
	Date        time.Time         `json:"date"`
	Time        string            `gorm:"size:10" json:"time"`
	Purpose     string            `gorm:"size:255" json:"purpose"`
	Type        AppointmentType   `gorm:"size:20;index" json:"type"`
	Status      AppointmentStatus `gorm:"size:20;default:'scheduled'" json:"status"`
	Notes       string            `gorm:"type:text" json:"notes,omitempty"`

	// Relations
	Doctor User `gorm:"foreignKey:DoctorID" json:"-"`
}

// IsTerminal reports whether the appointment can no longer change state.
// scheduled -> {completed, cancelled}; the two terminals are closed.
func (a *Appointment) IsTerminal() bool {
	return a.Status == AppointmentCompleted || a.Status == AppointmentCancelled
}
