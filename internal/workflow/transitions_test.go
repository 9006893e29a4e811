package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organ-donation-server/internal/status"
)

func TestDoctorApprovalAutoForwards(t *testing.T) {
	res, err := Apply(status.Pending, RoleDoctor, ActionApprove, Payload{})
	require.NoError(t, err)

	// Doctor approval never rests at INITIAL_DOCTOR_APPROVED; the system
	// rule forwards it into the administration queue in the same operation.
	assert.Equal(t, status.PendingInitialAdminApproval, res.Final)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, status.InitialDoctorApproved, res.Steps[0].To)
	assert.Equal(t, RoleDoctor, res.Steps[0].Role)
	assert.Equal(t, status.PendingInitialAdminApproval, res.Steps[1].To)
	assert.Equal(t, RoleSystem, res.Steps[1].Role)

	// Exactly one notification for the whole chain.
	assert.Len(t, res.Notifications(), 1)
}

func TestAdminInitialDecisionNotificationTexts(t *testing.T) {
	res, err := Apply(status.PendingInitialAdminApproval, RoleAdmin, ActionApprove, Payload{})
	require.NoError(t, err)
	require.Len(t, res.Notifications(), 1)
	assert.Equal(t, "You are initially approved by administration. Appointment scheduled by hospital soon stay tuned.", res.Notifications()[0].Message)

	res, err = Apply(status.PendingInitialAdminApproval, RoleAdmin, ActionReject, Payload{Reason: "ineligible"})
	require.NoError(t, err)
	require.Len(t, res.Notifications(), 1)
	assert.Equal(t, "You are not eligible for donation initially - administration reject you.", res.Notifications()[0].Message)
	assert.Equal(t, status.InitialAdminRejected, res.Final)
}

func TestRejectionsRequireReason(t *testing.T) {
	tests := []struct {
		name string
		from status.Status
		role Role
	}{
		{name: "doctor initial rejection", from: status.Pending, role: RoleDoctor},
		{name: "admin initial rejection", from: status.PendingInitialAdminApproval, role: RoleAdmin},
		{name: "admin final rejection from evaluation", from: status.MedicalEvaluationCompleted, role: RoleAdmin},
		{name: "admin final rejection from review queue", from: status.PendingFinalAdminReview, role: RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.from, tt.role, ActionReject, Payload{})
			assert.ErrorIs(t, err, ErrMissingPayload)

			_, err = Apply(tt.from, tt.role, ActionReject, Payload{Reason: "because"})
			assert.NoError(t, err)
		})
	}
}

func TestNoTransitionOutOfTerminalStates(t *testing.T) {
	terminals := []status.Status{
		status.InitialDoctorRejected,
		status.InitialAdminRejected,
		status.FinalAdminRejected,
		status.MatchFound,
	}
	roles := []Role{RoleDonor, RoleDoctor, RoleAdmin, RoleSystem}
	actions := []Action{
		ActionApprove, ActionReject, ActionForwardToAdmin, ActionScheduleEvaluation,
		ActionCompleteEvaluation, ActionSubmitFinalRecommendation, ActionAddToWaitingList, ActionMatchFound,
	}

	for _, from := range terminals {
		for _, role := range roles {
			for _, action := range actions {
				_, err := Apply(from, role, action, Payload{Reason: "r", Notes: "n"})
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s/%s from %s must be rejected", role, action, from)
			}
		}
	}
}

func TestDonorCanNeverAct(t *testing.T) {
	for _, s := range status.All() {
		_, err := Apply(s, RoleDonor, ActionApprove, Payload{})
		assert.ErrorIs(t, err, ErrInvalidTransition, "donor approve from %s", s)
		_, err = Apply(s, RoleDonor, ActionReject, Payload{Reason: "r"})
		assert.ErrorIs(t, err, ErrInvalidTransition, "donor reject from %s", s)
	}
}

func TestUnknownStatusHasNoTransitions(t *testing.T) {
	_, err := Apply(status.Unknown, RoleAdmin, ActionApprove, Payload{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestHappyPathProgressIsStrictlyIncreasing(t *testing.T) {
	steps := []struct {
		role   Role
		action Action
		p      Payload
	}{
		{RoleDoctor, ActionApprove, Payload{}},
		{RoleAdmin, ActionApprove, Payload{}},
		{RoleSystem, ActionScheduleEvaluation, Payload{}},
		{RoleSystem, ActionCompleteEvaluation, Payload{Notes: "ok"}},
		{RoleAdmin, ActionApprove, Payload{}},
		{RoleAdmin, ActionAddToWaitingList, Payload{}},
		{RoleAdmin, ActionMatchFound, Payload{}},
	}

	current := status.Pending
	progress := []int{status.ProgressPercent(current)}
	for _, s := range steps {
		res, err := Apply(current, s.role, s.action, s.p)
		require.NoError(t, err, "%s/%s from %s", s.role, s.action, current)
		current = res.Final
		progress = append(progress, status.ProgressPercent(current))
	}

	assert.Equal(t, status.MatchFound, current)
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1], "progress must strictly increase at step %d", i)
	}
}

func TestFinalReviewReachableWithAndWithoutRecommendation(t *testing.T) {
	// Straight off the completed evaluation.
	res, err := Apply(status.MedicalEvaluationCompleted, RoleAdmin, ActionApprove, Payload{})
	require.NoError(t, err)
	assert.Equal(t, status.FinalAdminApproved, res.Final)

	// Via the doctor's final recommendation.
	res, err = Apply(status.MedicalEvaluationCompleted, RoleDoctor, ActionSubmitFinalRecommendation, Payload{Comment: "fit to donate"})
	require.NoError(t, err)
	assert.Equal(t, status.PendingFinalAdminReview, res.Final)

	res, err = Apply(res.Final, RoleAdmin, ActionApprove, Payload{})
	require.NoError(t, err)
	assert.Equal(t, status.FinalAdminApproved, res.Final)
}
