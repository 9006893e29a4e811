// Package status is the single source of truth for donation application
// statuses: the canonical string set, legacy aliases, and the label/color/
// progress metadata UIs render from.
//
// Successful path:
//
//	PENDING -> INITIAL_DOCTOR_APPROVED -> PENDING_INITIAL_ADMIN_APPROVAL
//	  -> INITIALLY_APPROVED -> MEDICAL_EVALUATION_IN_PROGRESS
//	  -> MEDICAL_EVALUATION_COMPLETED -> PENDING_FINAL_ADMIN_REVIEW
//	  -> FINAL_ADMIN_APPROVED -> WAITING_LIST -> MATCH_FOUND
//
// Each review gate has a terminal rejection counterpart.
package status

import "strings"

// Status is a canonical application status value.
type Status string

const (
	Pending                     Status = "PENDING"
	InitialDoctorApproved       Status = "INITIAL_DOCTOR_APPROVED"
	PendingInitialAdminApproval Status = "PENDING_INITIAL_ADMIN_APPROVAL"
	InitiallyApproved           Status = "INITIALLY_APPROVED"
	MedicalEvaluationInProgress Status = "MEDICAL_EVALUATION_IN_PROGRESS"
	MedicalEvaluationCompleted  Status = "MEDICAL_EVALUATION_COMPLETED"
	PendingFinalAdminReview     Status = "PENDING_FINAL_ADMIN_REVIEW"
	FinalAdminApproved          Status = "FINAL_ADMIN_APPROVED"
	WaitingList                 Status = "WAITING_LIST"
	MatchFound                  Status = "MATCH_FOUND"

	InitialDoctorRejected Status = "INITIAL_DOCTOR_REJECTED"
	InitialAdminRejected  Status = "INITIAL_ADMIN_REJECTED"
	FinalAdminRejected    Status = "FINAL_ADMIN_REJECTED"

	// Unknown is returned by Resolve for input that matches no canonical
	// value and no alias. It is never persisted.
	Unknown Status = "UNKNOWN"
)

type meta struct {
	label      string
	colorClass string
	progress   int
}

var registry = map[Status]meta{
	Pending:                     {"Pending Doctor Review", "secondary", 0},
	InitialDoctorApproved:       {"Approved by Doctor", "info", 15},
	PendingInitialAdminApproval: {"Pending Administration Review", "info", 25},
	InitiallyApproved:           {"Initially Approved", "primary", 40},
	MedicalEvaluationInProgress: {"Medical Evaluation in Progress", "primary", 55},
	MedicalEvaluationCompleted:  {"Medical Evaluation Completed", "primary", 65},
	PendingFinalAdminReview:     {"Pending Final Review", "info", 70},
	FinalAdminApproved:          {"Final Approval Granted", "success", 80},
	WaitingList:                 {"On Waiting List", "success", 85},
	MatchFound:                  {"Match Found", "success", 100},
	InitialDoctorRejected:       {"Rejected by Doctor", "danger", 0},
	InitialAdminRejected:        {"Rejected by Administration", "danger", 0},
	FinalAdminRejected:          {"Rejected at Final Review", "danger", 0},
}

// aliases maps historical spellings that normalization alone cannot recover
// to their canonical value. Keys must already be in normalized form.
var aliases = map[string]Status{
	"SUBMITTED":               Pending,
	"NEW":                     Pending,
	"DOCTOR_APPROVED":         InitialDoctorApproved,
	"PENDING_ADMIN_APPROVAL":  PendingInitialAdminApproval,
	"ADMIN_PENDING":           PendingInitialAdminApproval,
	"EVALUATION_IN_PROGRESS":  MedicalEvaluationInProgress,
	"EVALUATION_COMPLETED":    MedicalEvaluationCompleted,
	"PENDING_FINAL_REVIEW":    PendingFinalAdminReview,
	"FINAL_APPROVED":          FinalAdminApproved,
	"WAITLISTED":              WaitingList,
	"MATCHED":                 MatchFound,
	"DOCTOR_REJECTED":         InitialDoctorRejected,
	"ADMIN_REJECTED":          InitialAdminRejected,
	"FINAL_REJECTED":          FinalAdminRejected,
	"REJECTED_BY_DOCTOR":      InitialDoctorRejected,
	"REJECTED_BY_ADMIN":       InitialAdminRejected,
	"FINAL_ADMIN_DISAPPROVED": FinalAdminRejected,
}

// normalize folds case and separator differences so "initially-approved",
// "Initially Approved" and "INITIALLY_APPROVED" all compare equal.
func normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// Resolve maps any historical spelling of a status to its canonical value.
// Unrecognized input yields Unknown; Resolve never fails, so callers can
// always render a default instead of crashing on legacy data.
func Resolve(raw string) Status {
	n := normalize(raw)
	if _, ok := registry[Status(n)]; ok {
		return Status(n)
	}
	if s, ok := aliases[n]; ok {
		return s
	}
	return Unknown
}

// Known reports whether s is a member of the canonical set.
func Known(s Status) bool {
	_, ok := registry[s]
	return ok
}

// Label returns the human-readable label for s.
func Label(s Status) string {
	if m, ok := registry[s]; ok {
		return m.label
	}
	return "Unknown"
}

// ColorClass returns the UI color classification for s.
func ColorClass(s Status) string {
	if m, ok := registry[s]; ok {
		return m.colorClass
	}
	return "secondary"
}

// ProgressPercent returns how far along the pipeline s is, in [0,100].
// Non-decreasing along every legal forward path; rejections reset to 0.
func ProgressPercent(s Status) int {
	if m, ok := registry[s]; ok {
		return m.progress
	}
	return 0
}

// IsRejection reports whether s is one of the rejection terminals.
func IsRejection(s Status) bool {
	return s == InitialDoctorRejected || s == InitialAdminRejected || s == FinalAdminRejected
}

// IsTerminal reports whether no transition leads out of s. A terminal
// application can only be followed by a brand-new application.
func IsTerminal(s Status) bool {
	return IsRejection(s) || s == MatchFound
}

// All returns every canonical status. Order is unspecified.
func All() []Status {
	out := make([]Status, 0, len(registry))
	for s := range registry {
		out = append(out, s)
	}
	return out
}
