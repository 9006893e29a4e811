// Package workflow implements the approval workflow for donation
// applications: the pure transition table, the scheduling eligibility
// predicate, and the engine that persists transitions and dispatches
// notifications.
package workflow

import (
	"fmt"

	"organ-donation-server/internal/status"
)

// Role is the actor kind attempting a transition.
type Role string

const (
	RoleDonor  Role = "donor"
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
	// RoleSystem marks transitions the engine fires on its own: the
	// auto-forward after doctor approval and the two appointment-driven
	// evaluation transitions.
	RoleSystem Role = "system"
)

// Action is a named operation an actor can attempt on an application.
type Action string

const (
	ActionApprove                   Action = "approve"
	ActionReject                    Action = "reject"
	ActionForwardToAdmin            Action = "forwardToAdmin"
	ActionScheduleEvaluation        Action = "scheduleEvaluation"
	ActionCompleteEvaluation        Action = "completeEvaluation"
	ActionSubmitFinalRecommendation Action = "submitFinalRecommendation"
	ActionAddToWaitingList          Action = "addToWaitingList"
	ActionMatchFound                Action = "matchFound"
)

// Payload carries the optional annotations an action attaches to the
// application. Rejections require Reason; everything else is additive.
type Payload struct {
	Reason  string
	Notes   string
	Comment string
}

// Notification is the donor-facing message template associated with a
// transition. Dispatch is the caller's job.
type Notification struct {
	Title    string
	Message  string
	Category string
}

type key struct {
	from   status.Status
	role   Role
	action Action
}

type rule struct {
	next           status.Status
	notification   *Notification
	requiresReason bool
	// autoForward names a system rule the engine must apply immediately
	// after this one, in the same logical operation.
	autoForward *key
}

var forwardAfterDoctorApproval = key{status.InitialDoctorApproved, RoleSystem, ActionForwardToAdmin}

var table = map[key]rule{
	// Initial doctor review. Approval never rests at INITIAL_DOCTOR_APPROVED:
	// it always auto-forwards into the administration queue.
	{status.Pending, RoleDoctor, ActionApprove}: {
		next: status.InitialDoctorApproved,
		notification: &Notification{
			Title:    "Application Update",
			Message:  "Your donation application was approved by the reviewing doctor and forwarded to administration.",
			Category: "application",
		},
		autoForward: &forwardAfterDoctorApproval,
	},
	forwardAfterDoctorApproval: {
		next: status.PendingInitialAdminApproval,
	},
	{status.Pending, RoleDoctor, ActionReject}: {
		next:           status.InitialDoctorRejected,
		requiresReason: true,
		notification: &Notification{
			Title:    "Application Update",
			Message:  "Your donation application was rejected by the reviewing doctor.",
			Category: "application",
		},
	},

	// Initial administration review. Notification texts are fixed wording
	// older clients already display.
	{status.PendingInitialAdminApproval, RoleAdmin, ActionApprove}: {
		next: status.InitiallyApproved,
		notification: &Notification{
			Title:    "Application Update",
			Message:  "You are initially approved by administration. Appointment scheduled by hospital soon stay tuned.",
			Category: "application",
		},
	},
	{status.PendingInitialAdminApproval, RoleAdmin, ActionReject}: {
		next:           status.InitialAdminRejected,
		requiresReason: true,
		notification: &Notification{
			Title:    "Application Update",
			Message:  "You are not eligible for donation initially - administration reject you.",
			Category: "application",
		},
	},

	// Evaluation phase, driven by the appointment lifecycle.
	{status.InitiallyApproved, RoleSystem, ActionScheduleEvaluation}: {
		next: status.MedicalEvaluationInProgress,
		notification: &Notification{
			Title:    "Medical Evaluation",
			Message:  "Your medical evaluation appointment has been scheduled by the hospital.",
			Category: "appointment",
		},
	},
	{status.MedicalEvaluationInProgress, RoleSystem, ActionCompleteEvaluation}: {
		next: status.MedicalEvaluationCompleted,
		notification: &Notification{
			Title:    "Medical Evaluation",
			Message:  "Your medical evaluation is completed. The application now awaits the final administration review.",
			Category: "appointment",
		},
	},

	// Final review. The admin may decide straight off the completed
	// evaluation, or after the doctor files a final recommendation.
	{status.MedicalEvaluationCompleted, RoleDoctor, ActionSubmitFinalRecommendation}: {
		next: status.PendingFinalAdminReview,
		notification: &Notification{
			Title:    "Application Update",
			Message:  "The doctor's final recommendation was recorded. Administration will review your application shortly.",
			Category: "application",
		},
	},
	{status.MedicalEvaluationCompleted, RoleAdmin, ActionApprove}: {
		next:         status.FinalAdminApproved,
		notification: finalApprovalNotification,
	},
	{status.PendingFinalAdminReview, RoleAdmin, ActionApprove}: {
		next:         status.FinalAdminApproved,
		notification: finalApprovalNotification,
	},
	{status.MedicalEvaluationCompleted, RoleAdmin, ActionReject}: {
		next:           status.FinalAdminRejected,
		requiresReason: true,
		notification:   finalRejectionNotification,
	},
	{status.PendingFinalAdminReview, RoleAdmin, ActionReject}: {
		next:           status.FinalAdminRejected,
		requiresReason: true,
		notification:   finalRejectionNotification,
	},

	// Matching.
	{status.FinalAdminApproved, RoleAdmin, ActionAddToWaitingList}: {
		next: status.WaitingList,
		notification: &Notification{
			Title:    "Waiting List",
			Message:  "You have been placed on the transplant waiting list.",
			Category: "matching",
		},
	},
	{status.WaitingList, RoleAdmin, ActionMatchFound}: {
		next: status.MatchFound,
		notification: &Notification{
			Title:    "Match Found",
			Message:  "A recipient match has been found. The hospital will contact you with next steps.",
			Category: "matching",
		},
	},
}

var finalApprovalNotification = &Notification{
	Title:    "Application Update",
	Message:  "Congratulations! Administration has granted final approval for your donation.",
	Category: "application",
}

var finalRejectionNotification = &Notification{
	Title:    "Application Update",
	Message:  "Administration has rejected your donation application at the final review.",
	Category: "application",
}

// Step is one applied table entry. Auto-forwarded rules show up as their own
// step with RoleSystem so the chain stays visible and testable.
type Step struct {
	From         status.Status
	To           status.Status
	Role         Role
	Action       Action
	Notification *Notification
}

// Result is the full outcome of Apply: every step in order plus the resting
// status. Persisting the steps and dispatching the notifications is the
// engine's job; Apply itself performs no I/O.
type Result struct {
	Steps []Step
	Final status.Status
}

// Notifications collects the non-nil notification of each step, in order.
func (r Result) Notifications() []Notification {
	var out []Notification
	for _, s := range r.Steps {
		if s.Notification != nil {
			out = append(out, *s.Notification)
		}
	}
	return out
}

// Apply computes the transition for (current, role, action), following any
// auto-forward rules to the resting status. It fails with
// ErrInvalidTransition when no table entry matches (including every action
// attempted from a terminal status) and with ErrMissingPayload when a
// required annotation is absent.
func Apply(current status.Status, role Role, action Action, p Payload) (Result, error) {
	r, ok := table[key{current, role, action}]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s by %s from %s", ErrInvalidTransition, action, role, current)
	}
	if r.requiresReason && p.Reason == "" {
		return Result{}, fmt.Errorf("%w: %s requires a reason", ErrMissingPayload, action)
	}

	res := Result{
		Steps: []Step{{From: current, To: r.next, Role: role, Action: action, Notification: r.notification}},
		Final: r.next,
	}
	for fwd := r.autoForward; fwd != nil; {
		next, ok := table[*fwd]
		if !ok {
			return Result{}, fmt.Errorf("%w: broken auto-forward from %s", ErrInvalidTransition, res.Final)
		}
		res.Steps = append(res.Steps, Step{
			From:         fwd.from,
			To:           next.next,
			Role:         fwd.role,
			Action:       fwd.action,
			Notification: next.notification,
		})
		res.Final = next.next
		fwd = next.autoForward
	}
	return res, nil
}
