package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"organ-donation-server/internal/status"
)

func TestDonorSchedulingEligibility(t *testing.T) {
	eligible := map[status.Status]bool{
		status.InitiallyApproved:           true,
		status.MedicalEvaluationInProgress: true,
		status.MedicalEvaluationCompleted:  true,
	}

	for _, s := range status.All() {
		assert.Equal(t, eligible[s], CanScheduleAppointments(s, RoleDonor),
			"donor eligibility for %s", s)
	}
	assert.False(t, CanScheduleAppointments(status.Unknown, RoleDonor))
}

func TestStaffAlwaysEligible(t *testing.T) {
	for _, role := range []Role{RoleDoctor, RoleAdmin, RoleSystem} {
		for _, s := range status.All() {
			assert.True(t, CanScheduleAppointments(s, role), "%s at %s", role, s)
		}
		assert.True(t, CanScheduleAppointments(status.Unknown, role))
	}
}
