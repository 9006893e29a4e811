package workflow

import "organ-donation-server/internal/status"

// CanScheduleAppointments decides whether appointments may be scheduled for a
// donor whose application is in status s. Staff roles always pass: they are
// the schedulers, not the subjects. A donor is eligible from initial approval
// through the end of the evaluation phase, so they can follow the care
// episode, and at no other point.
//
// The result must be re-derived on every check, never cached: eligibility
// flips exactly when a transition fires.
func CanScheduleAppointments(s status.Status, role Role) bool {
	if role != RoleDonor {
		return true
	}
	switch s {
	case status.InitiallyApproved, status.MedicalEvaluationInProgress, status.MedicalEvaluationCompleted:
		return true
	}
	return false
}
