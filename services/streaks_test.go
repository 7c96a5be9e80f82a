package services

import (
	"testing"
	"time"

	"github.com/ailubes/veterans-orden-sub005/models"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvanceStreakFirstActivity(t *testing.T) {
	next, crossed, counted := advanceStreak(models.Streak{}, day(2026, 3, 1))
	assert.True(t, counted)
	assert.Equal(t, 1, next.CurrentStreak)
	assert.Equal(t, 1, next.LongestStreak)
	assert.Equal(t, 1, next.TotalDays)
	assert.Empty(t, crossed)
}

func TestAdvanceStreakSameDayNoOp(t *testing.T) {
	d := day(2026, 3, 1)
	s := models.Streak{CurrentStreak: 4, LongestStreak: 4, TotalDays: 10, LastActivityDate: &d}

	next, crossed, counted := advanceStreak(s, d)
	assert.False(t, counted)
	assert.Equal(t, s, next)
	assert.Empty(t, crossed)
}

func TestAdvanceStreakTimeOfDayIgnored(t *testing.T) {
	d := day(2026, 3, 1)
	s := models.Streak{CurrentStreak: 2, LongestStreak: 2, TotalDays: 2, LastActivityDate: &d}

	_, _, counted := advanceStreak(s, time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC))
	assert.False(t, counted, "later the same day is still the same day")
}

func TestAdvanceStreakConsecutiveDay(t *testing.T) {
	d := day(2026, 3, 1)
	s := models.Streak{CurrentStreak: 6, LongestStreak: 6, TotalDays: 6, LastActivityDate: &d}

	next, crossed, counted := advanceStreak(s, day(2026, 3, 2))
	assert.True(t, counted)
	assert.Equal(t, 7, next.CurrentStreak)
	assert.Equal(t, 7, next.LongestStreak)
	assert.Equal(t, 7, next.TotalDays)
	assert.Equal(t, []int{7}, crossed, "crossing 7 days is a milestone")
}

func TestAdvanceStreakGapResets(t *testing.T) {
	d := day(2026, 3, 1)
	s := models.Streak{CurrentStreak: 12, LongestStreak: 12, TotalDays: 20, LastActivityDate: &d}

	next, crossed, counted := advanceStreak(s, day(2026, 3, 5))
	assert.True(t, counted)
	assert.Equal(t, 1, next.CurrentStreak)
	assert.Equal(t, 12, next.LongestStreak, "longest streak survives the reset")
	assert.Equal(t, 21, next.TotalDays)
	assert.Empty(t, crossed)
}

func TestAdvanceStreakLongestOnlyGrows(t *testing.T) {
	d := day(2026, 3, 1)
	s := models.Streak{CurrentStreak: 3, LongestStreak: 30, TotalDays: 50, LastActivityDate: &d}

	next, _, _ := advanceStreak(s, day(2026, 3, 2))
	assert.Equal(t, 4, next.CurrentStreak)
	assert.Equal(t, 30, next.LongestStreak)
}

func TestAdvanceStreakMonthBoundary(t *testing.T) {
	d := day(2026, 2, 28)
	s := models.Streak{CurrentStreak: 1, LongestStreak: 1, TotalDays: 1, LastActivityDate: &d}

	next, _, counted := advanceStreak(s, day(2026, 3, 1))
	assert.True(t, counted)
	assert.Equal(t, 2, next.CurrentStreak)
}

func TestStreakMilestoneBoundaries(t *testing.T) {
	for _, boundary := range streakMilestones {
		d := day(2026, 1, 1)
		s := models.Streak{CurrentStreak: boundary - 1, LongestStreak: boundary - 1, TotalDays: boundary - 1, LastActivityDate: &d}
		_, crossed, _ := advanceStreak(s, day(2026, 1, 2))
		assert.Equal(t, []int{boundary}, crossed)
		assert.NotZero(t, streakBonusPoints[boundary], "every boundary pays a bonus")
	}
}
