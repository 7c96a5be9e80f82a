package services

import (
	"testing"

	"github.com/ailubes/veterans-orden-sub005/models"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateAllThresholdsMet(t *testing.T) {
	req := models.RoleRequirement{
		Role:               models.RoleActivist,
		Level:              3,
		PointsRequired:     500,
		ReferralsRequired:  3,
		TasksRequired:      10,
		TenureDaysRequired: 90,
	}
	stats := UserStats{Points: 600, Referrals: 3, TasksCompleted: 12, TenureDays: 120}

	result := Evaluate(stats, req)
	assert.True(t, result.IsEligible)
	assert.Equal(t, int64(600), result.Progress.Points.Current)
	assert.Equal(t, int64(500), result.Progress.Points.Required)
}

func TestEvaluateAndSemantics(t *testing.T) {
	req := models.RoleRequirement{
		PointsRequired:    150,
		ReferralsRequired: 2,
	}
	// Points met, referrals short: not eligible.
	result := Evaluate(UserStats{Points: 200, Referrals: 1}, req)
	assert.False(t, result.IsEligible)
}

func TestEvaluateZeroThresholdAutoSatisfied(t *testing.T) {
	req := models.RoleRequirement{PointsRequired: 150}
	result := Evaluate(UserStats{Points: 150}, req)
	assert.True(t, result.IsEligible, "unset referral/task/tenure thresholds must not block")
}

func TestEvaluateProgressAlwaysPopulated(t *testing.T) {
	req := models.RoleRequirement{PointsRequired: 150, TenureDaysRequired: 30}
	result := Evaluate(UserStats{Points: 100, TenureDays: 10}, req)

	assert.False(t, result.IsEligible)
	assert.Equal(t, int64(100), result.Progress.Points.Current)
	assert.Equal(t, int64(150), result.Progress.Points.Required)
	assert.Equal(t, int64(10), result.Progress.TenureDays.Current)
	assert.Equal(t, int64(30), result.Progress.TenureDays.Required)
}

func TestEvaluateExactThreshold(t *testing.T) {
	req := models.RoleRequirement{PointsRequired: 150}
	assert.True(t, Evaluate(UserStats{Points: 150}, req).IsEligible)
	assert.False(t, Evaluate(UserStats{Points: 149}, req).IsEligible)
}
