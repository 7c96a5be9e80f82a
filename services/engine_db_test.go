package services

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise the engine against a real PostgreSQL instance, since
// the idempotency and serialization guarantees live in the store's unique
// indexes and row locks. Point TEST_DATABASE_URL at a scratch database.
func testDB(t *testing.T) *database.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping store-backed tests")
	}
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, db.InitializeTables())
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *database.DB, role models.MembershipRole, active bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	email := fmt.Sprintf("test-%s@example.org", id)
	_, err := db.Exec(`
		INSERT INTO users (id, email, full_name, membership_role, referral_code, is_active, created_at)
		VALUES ($1, $2, 'Test Member', $3, $4, $5, now())`,
		id, email, role, id.String()[:8], active)
	require.NoError(t, err)
	return id
}

func setAdvancementMode(t *testing.T, db *database.DB, mode string) {
	t.Helper()
	require.NoError(t, NewSettingsService(db).SetAdvancementMode(mode))
}

func newTestEngine(t *testing.T, db *database.DB) (*PointsService, *AdvancementService) {
	t.Helper()
	catalog, err := LoadRoleCatalog(db)
	require.NoError(t, err)
	return NewPointsService(db), NewAdvancementService(db, catalog, nil)
}

func TestAwardIdempotency(t *testing.T) {
	db := testDB(t)
	points, _ := newTestEngine(t, db)
	userID := createTestUser(t, db, models.RoleSupporter, true)

	taskID := uuid.NewString()
	for i := 0; i < 3; i++ {
		result, err := points.AwardPoints(userID, 20, models.TxnEarnTask, "task", taskID, "Completed a task", nil)
		require.NoError(t, err)
		assert.Equal(t, i > 0, result.Duplicate)
		assert.Equal(t, int64(20), result.Transaction.Amount)
	}

	var count int
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM points_transactions
		WHERE user_id = $1 AND reference_type = 'task' AND reference_id = $2`, userID, taskID).Scan(&count))
	assert.Equal(t, 1, count)

	balance, err := points.GetBalance(userID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance.Total)

	var cached int64
	require.NoError(t, db.QueryRow(`SELECT points FROM users WHERE id = $1`, userID).Scan(&cached))
	assert.Equal(t, int64(20), cached, "cache must agree with the ledger")
}

func TestConcurrentAwardsSameKey(t *testing.T) {
	db := testDB(t)
	points, _ := newTestEngine(t, db)
	userID := createTestUser(t, db, models.RoleSupporter, true)
	taskID := uuid.NewString()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = points.AwardPoints(userID, 20, models.TxnEarnTask, "task", taskID, "", nil)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	balance, err := points.GetBalance(userID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance.Total, "racing identical events credit exactly once")
}

func TestSpendInsufficientBalance(t *testing.T) {
	db := testDB(t)
	points, _ := newTestEngine(t, db)
	userID := createTestUser(t, db, models.RoleSupporter, true)

	_, err := points.AwardPoints(userID, 150, models.TxnEarnTask, "task", uuid.NewString(), "", nil)
	require.NoError(t, err)

	_, err = points.SpendPoints(userID, 200, models.TxnSpendMarketplace, "order", uuid.NewString(), "")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	balance, err := points.GetBalance(userID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance.Total, "a rejected spend leaves the balance untouched")
}

func TestSpendHappyPath(t *testing.T) {
	db := testDB(t)
	points, _ := newTestEngine(t, db)
	userID := createTestUser(t, db, models.RoleSupporter, true)

	_, err := points.AwardPoints(userID, 100, models.TxnEarnTask, "task", uuid.NewString(), "", nil)
	require.NoError(t, err)

	txn, err := points.SpendPoints(userID, 30, models.TxnSpendMarketplace, "order", uuid.NewString(), "Poster")
	require.NoError(t, err)
	assert.Equal(t, int64(-30), txn.Amount)

	balance, err := points.GetBalance(userID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance.Total)

	var cached int64
	require.NoError(t, db.QueryRow(`SELECT points FROM users WHERE id = $1`, userID).Scan(&cached))
	assert.Equal(t, int64(70), cached)
}

func TestSpendReplayAfterBalanceDrop(t *testing.T) {
	db := testDB(t)
	points, _ := newTestEngine(t, db)
	userID := createTestUser(t, db, models.RoleSupporter, true)

	_, err := points.AwardPoints(userID, 100, models.TxnEarnTask, "task", uuid.NewString(), "", nil)
	require.NoError(t, err)

	orderID := uuid.NewString()
	first, err := points.SpendPoints(userID, 100, models.TxnSpendMarketplace, "order", orderID, "")
	require.NoError(t, err)

	// The balance is now zero; a redelivered checkout callback for the same
	// order must still succeed, resolving to the row it already wrote.
	replay, err := points.SpendPoints(userID, 100, models.TxnSpendMarketplace, "order", orderID, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)

	balance, err := points.GetBalance(userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Total)

	var cached int64
	require.NoError(t, db.QueryRow(`SELECT points FROM users WHERE id = $1`, userID).Scan(&cached))
	assert.Equal(t, int64(0), cached, "a replayed spend must not touch the cache")
}

func TestAutomaticAdvancement(t *testing.T) {
	db := testDB(t)
	points, advancement := newTestEngine(t, db)
	setAdvancementMode(t, db, models.AdvancementAutomatic)
	userID := createTestUser(t, db, models.RoleSupporter, true)

	// 100 of the 150 points member requires: not eligible yet.
	_, err := points.AwardPoints(userID, 100, models.TxnEarnTask, "task", uuid.NewString(), "", nil)
	require.NoError(t, err)

	result, err := advancement.CheckAndAdvanceRole(userID)
	require.NoError(t, err)
	assert.False(t, result.Advanced)
	require.NotNil(t, result.Progress)
	assert.Equal(t, int64(100), result.Progress.Points.Current)
	assert.Equal(t, int64(150), result.Progress.Points.Required)

	// Top up to 150: advances to member in place.
	_, err = points.AwardPoints(userID, 50, models.TxnEarnVote, "vote", uuid.NewString(), "", nil)
	require.NoError(t, err)

	result, err = advancement.CheckAndAdvanceRole(userID)
	require.NoError(t, err)
	assert.True(t, result.Advanced)
	assert.Equal(t, models.RoleMember, result.NewRole)

	var roleStr string
	var advancedAt *time.Time
	require.NoError(t, db.QueryRow(`SELECT membership_role, role_advanced_at FROM users WHERE id = $1`, userID).
		Scan(&roleStr, &advancedAt))
	assert.Equal(t, "member", roleStr)
	assert.NotNil(t, advancedAt)

	var milestones int
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM milestones WHERE user_id = $1 AND type = 'role_advance'`, userID).Scan(&milestones))
	assert.Equal(t, 1, milestones)
}

func TestAdvancementOneLevelPerInvocation(t *testing.T) {
	db := testDB(t)
	points, advancement := newTestEngine(t, db)
	setAdvancementMode(t, db, models.AdvancementAutomatic)
	userID := createTestUser(t, db, models.RoleSupporter, true)

	// Enough points for member and beyond, but activist also needs
	// referrals, tasks and tenure, so the ladder stops there anyway;
	// the point is that a single call moves at most one rung.
	_, err := points.AwardPoints(userID, 2000, models.TxnManualAdjustment, "grant", uuid.NewString(), "bulk grant", nil)
	require.NoError(t, err)

	result, err := advancement.CheckAndAdvanceRole(userID)
	require.NoError(t, err)
	require.True(t, result.Advanced)
	assert.Equal(t, models.RoleMember, result.NewRole)

	var roleStr string
	require.NoError(t, db.QueryRow(`SELECT membership_role FROM users WHERE id = $1`, userID).Scan(&roleStr))
	assert.Equal(t, "member", roleStr)
}

func TestApprovalRequiredFlow(t *testing.T) {
	db := testDB(t)
	points, advancement := newTestEngine(t, db)
	setAdvancementMode(t, db, models.AdvancementApprovalRequired)
	t.Cleanup(func() { setAdvancementMode(t, db, models.AdvancementAutomatic) })

	userID := createTestUser(t, db, models.RoleSupporter, true)
	adminID := createTestUser(t, db, models.RoleLeader, true)

	_, err := points.AwardPoints(userID, 150, models.TxnEarnTask, "task", uuid.NewString(), "", nil)
	require.NoError(t, err)

	// Eligible, but gated: a pending request is queued, the role is not
	// touched.
	result, err := advancement.CheckAndAdvanceRole(userID)
	require.NoError(t, err)
	assert.False(t, result.Advanced)
	assert.True(t, result.ApprovalRequired)
	require.NotNil(t, result.RequestID)
	firstRequestID := *result.RequestID

	var roleStr string
	require.NoError(t, db.QueryRow(`SELECT membership_role FROM users WHERE id = $1`, userID).Scan(&roleStr))
	assert.Equal(t, "supporter", roleStr)

	// A second check before review reuses the pending request.
	result, err = advancement.CheckAndAdvanceRole(userID)
	require.NoError(t, err)
	assert.True(t, result.ApprovalRequired)
	require.NotNil(t, result.RequestID)
	assert.Equal(t, firstRequestID, *result.RequestID)

	var pendingCount int
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM advancement_requests WHERE user_id = $1 AND status = 'pending'`, userID).Scan(&pendingCount))
	assert.Equal(t, 1, pendingCount)

	// Approval performs the role mutation.
	processed, err := advancement.ProcessAdvancementRequest(firstRequestID, adminID, true, "")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, processed.Status)

	require.NoError(t, db.QueryRow(`SELECT membership_role FROM users WHERE id = $1`, userID).Scan(&roleStr))
	assert.Equal(t, "member", roleStr)

	// One-shot: reprocessing is a terminal error.
	_, err = advancement.ProcessAdvancementRequest(firstRequestID, adminID, true, "")
	require.ErrorIs(t, err, ErrRequestAlreadyProcessed)

	_, err = advancement.ProcessAdvancementRequest(uuid.New(), adminID, true, "")
	require.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRejectionKeepsRole(t *testing.T) {
	db := testDB(t)
	points, advancement := newTestEngine(t, db)
	setAdvancementMode(t, db, models.AdvancementApprovalRequired)
	t.Cleanup(func() { setAdvancementMode(t, db, models.AdvancementAutomatic) })

	userID := createTestUser(t, db, models.RoleSupporter, true)
	adminID := createTestUser(t, db, models.RoleLeader, true)

	_, err := points.AwardPoints(userID, 150, models.TxnEarnTask, "task", uuid.NewString(), "", nil)
	require.NoError(t, err)

	result, err := advancement.CheckAndAdvanceRole(userID)
	require.NoError(t, err)
	require.NotNil(t, result.RequestID)

	processed, err := advancement.ProcessAdvancementRequest(*result.RequestID, adminID, false, "needs more tenure")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, processed.Status)
	require.NotNil(t, processed.RejectionReason)
	assert.Equal(t, "needs more tenure", *processed.RejectionReason)

	var roleStr string
	require.NoError(t, db.QueryRow(`SELECT membership_role FROM users WHERE id = $1`, userID).Scan(&roleStr))
	assert.Equal(t, "supporter", roleStr)
}

func TestManualAdvancement(t *testing.T) {
	db := testDB(t)
	_, advancement := newTestEngine(t, db)
	userID := createTestUser(t, db, models.RoleSupporter, true)
	adminID := createTestUser(t, db, models.RoleLeader, true)

	// Skipping levels is allowed for the admin override.
	result, err := advancement.ManuallyAdvanceRole(userID, models.RoleActivist, adminID, "founding member", false)
	require.NoError(t, err)
	assert.True(t, result.Advanced)
	assert.Equal(t, models.RoleActivist, result.NewRole)

	// Demotion needs the explicit flag.
	_, err = advancement.ManuallyAdvanceRole(userID, models.RoleMember, adminID, "", false)
	require.ErrorIs(t, err, ErrInvalidRoleTransition)

	result, err = advancement.ManuallyAdvanceRole(userID, models.RoleMember, adminID, "disciplinary", true)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, result.NewRole)

	// Same-level transitions make no sense either way.
	_, err = advancement.ManuallyAdvanceRole(userID, models.RoleMember, adminID, "", true)
	require.ErrorIs(t, err, ErrInvalidRoleTransition)
}

func TestReferralAttribution(t *testing.T) {
	db := testDB(t)
	points, _ := newTestEngine(t, db)
	referrals := NewReferralService(db)

	referrerID := createTestUser(t, db, models.RoleMember, true)
	referredID := uuid.New()
	_, err := db.Exec(`
		INSERT INTO users (id, email, full_name, membership_role, referred_by_id, is_active, created_at)
		VALUES ($1, $2, 'Referred Member', 'supporter', $3, FALSE, now())`,
		referredID, fmt.Sprintf("test-%s@example.org", referredID), referrerID)
	require.NoError(t, err)

	// Activation credits the referrer; re-activation does not.
	require.NoError(t, referrals.OnMemberActivated(referredID))
	require.NoError(t, referrals.OnMemberActivated(referredID))

	balance, err := points.GetBalance(referrerID)
	require.NoError(t, err)
	assert.Equal(t, int64(referralBonusPoints), balance.Total)

	var referralCount int
	require.NoError(t, db.QueryRow(`SELECT referral_count FROM users WHERE id = $1`, referrerID).Scan(&referralCount))
	assert.Equal(t, 1, referralCount)
}

func TestReferralNoReferrer(t *testing.T) {
	db := testDB(t)
	referrals := NewReferralService(db)
	userID := createTestUser(t, db, models.RoleSupporter, true)

	require.NoError(t, referrals.OnMemberActivated(userID))
}

func TestStreakRecordActivity(t *testing.T) {
	db := testDB(t)
	streaks := NewStreakService(db, nil)
	points, _ := newTestEngine(t, db)
	userID := createTestUser(t, db, models.RoleSupporter, true)

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	s, err := streaks.RecordActivity(userID, base)
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentStreak)

	// Same day again: no-op.
	s, err = streaks.RecordActivity(userID, base.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 1, s.TotalDays)

	s, err = streaks.RecordActivity(userID, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, s.CurrentStreak)

	// Gap: reset, longest kept.
	s, err = streaks.RecordActivity(userID, base.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)
	assert.Equal(t, 3, s.TotalDays)

	// Each counted day paid the daily activity credit exactly once.
	balance, err := points.GetBalance(userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3*dailyActivityPoints), balance.Total)
}

func TestStreakMilestonePushDelivered(t *testing.T) {
	db := testDB(t)
	var received []ExpoPushMessage
	server := pushTestServer(t, &received)
	streaks := NewStreakService(db, &NotificationService{ExpoPushURL: server.URL})

	userID := createTestUser(t, db, models.RoleSupporter, true)
	_, err := db.Exec(`UPDATE users SET push_token = 'ExponentPushToken[test]' WHERE id = $1`, userID)
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for day := 0; day < 7; day++ {
		_, err := streaks.RecordActivity(userID, base.AddDate(0, 0, day))
		require.NoError(t, err)
	}

	require.Len(t, received, 1)
	assert.Equal(t, "7-day streak!", received[0].Title)
	assert.Equal(t, "milestone", received[0].Data["type"])

	// Replaying the boundary day must not push again.
	_, err = streaks.RecordActivity(userID, base.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Len(t, received, 1)
}

func TestCacheAlwaysMatchesLedger(t *testing.T) {
	db := testDB(t)
	points, _ := newTestEngine(t, db)
	userID := createTestUser(t, db, models.RoleSupporter, true)

	_, err := points.AwardPoints(userID, 100, models.TxnEarnTask, "task", uuid.NewString(), "", nil)
	require.NoError(t, err)
	_, err = points.AwardPoints(userID, 40, models.TxnEarnVote, "vote", uuid.NewString(), "", nil)
	require.NoError(t, err)
	_, err = points.SpendPoints(userID, 60, models.TxnSpendMarketplace, "order", uuid.NewString(), "")
	require.NoError(t, err)
	// Replay one award; it must change nothing.
	history, err := points.GetHistory(userID, 10, 0, models.TxnEarnTask)
	require.NoError(t, err)
	require.Len(t, history, 1)
	_, err = points.AwardPoints(userID, 100, models.TxnEarnTask, "task", history[0].ReferenceID, "", nil)
	require.NoError(t, err)

	balance, err := points.GetBalance(userID)
	require.NoError(t, err)
	var cached int64
	require.NoError(t, db.QueryRow(`SELECT points FROM users WHERE id = $1`, userID).Scan(&cached))
	assert.Equal(t, balance.Total, cached)
	assert.Equal(t, int64(80), balance.Total)
}

func TestGetHistoryPagination(t *testing.T) {
	db := testDB(t)
	points, _ := newTestEngine(t, db)
	userID := createTestUser(t, db, models.RoleSupporter, true)

	for i := 0; i < 5; i++ {
		_, err := points.AwardPoints(userID, 10, models.TxnEarnVote, "vote", uuid.NewString(), "", nil)
		require.NoError(t, err)
	}

	page1, err := points.GetHistory(userID, 2, 0, "")
	require.NoError(t, err)
	page2, err := points.GetHistory(userID, 2, 2, "")
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	assert.NotEqual(t, page1[0].ID, page2[0].ID)
}
