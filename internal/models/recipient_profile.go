package models

// RecipientProfile is the intake document for a transplant recipient. It may
// predate the recipient's user account, so UserID can be empty. Appointment
// scheduling always prefers the account id over the profile id when both are
// known (see the appointments service).
type RecipientProfile struct {
	BaseModel
	UserID       string `gorm:"size:36;index" json:"userId,omitempty"`
	FullName     string `gorm:"size:200" json:"fullName"`
	OrganNeeded  string `gorm:"size:50" json:"organNeeded"`
	BloodGroup   string `gorm:"size:5" json:"bloodGroup"`
	UrgencyLevel string `gorm:"size:20" json:"urgencyLevel"`
	Hospital     string `gorm:"size:255" json:"hospital,omitempty"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}
