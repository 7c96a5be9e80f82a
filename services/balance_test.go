package services

import (
	"testing"
	"time"

	"github.com/ailubes/veterans-orden-sub005/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var balanceNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func txn(amount int64, createdAt time.Time, expiresAt *time.Time) models.PointsTransaction {
	return models.PointsTransaction{Amount: amount, CreatedAt: createdAt, ExpiresAt: expiresAt}
}

func expiry(t time.Time) *time.Time {
	return &t
}

func TestComputeBalanceSimpleSum(t *testing.T) {
	txns := []models.PointsTransaction{
		txn(100, balanceNow.AddDate(0, -2, 0), nil),
		txn(50, balanceNow.AddDate(0, -1, 0), nil),
	}
	b := computeBalance(txns, balanceNow)
	assert.Equal(t, int64(150), b.Total)
	assert.Nil(t, b.ExpirationDate)
}

func TestComputeBalanceEmpty(t *testing.T) {
	b := computeBalance(nil, balanceNow)
	assert.Equal(t, int64(0), b.Total)
	assert.Equal(t, int64(0), b.ExpiringSoon)
	assert.Nil(t, b.ExpirationDate)
}

func TestComputeBalanceSpendConsumesOldestFirst(t *testing.T) {
	oldLot := balanceNow.AddDate(0, -3, 0)
	newLot := balanceNow.AddDate(0, -1, 0)
	txns := []models.PointsTransaction{
		txn(100, oldLot, expiry(balanceNow.AddDate(0, 0, 10))), // expires in 10 days
		txn(80, newLot, nil),
		txn(-90, balanceNow.AddDate(0, 0, -5), nil),
	}
	b := computeBalance(txns, balanceNow)
	// The spend drains the old lot entirely and takes 10 from the new one.
	assert.Equal(t, int64(70), b.Total)
	assert.Equal(t, int64(0), b.ExpiringSoon, "the expiring lot was fully consumed")
	assert.Nil(t, b.ExpirationDate)
}

func TestComputeBalanceExpiredUnspentEarnsCountZero(t *testing.T) {
	txns := []models.PointsTransaction{
		txn(100, balanceNow.AddDate(-1, 0, 0), expiry(balanceNow.AddDate(0, 0, -1))), // expired yesterday
		txn(40, balanceNow.AddDate(0, 0, -2), nil),
	}
	b := computeBalance(txns, balanceNow)
	assert.Equal(t, int64(40), b.Total)
}

func TestComputeBalanceSpendSkipsLotsExpiredAtSpendTime(t *testing.T) {
	// Lot expired before the spend happened; the spend must have been
	// funded by the live lot.
	expired := expiry(balanceNow.AddDate(0, 0, -20))
	txns := []models.PointsTransaction{
		txn(100, balanceNow.AddDate(0, -2, 0), expired),
		txn(100, balanceNow.AddDate(0, -1, 0), nil),
		txn(-50, balanceNow.AddDate(0, 0, -10), nil), // after the first lot expired
	}
	b := computeBalance(txns, balanceNow)
	assert.Equal(t, int64(50), b.Total)
}

func TestComputeBalanceSpendBeforeExpiryStillCounts(t *testing.T) {
	// The spend predates the lot's expiry, so it legitimately drew from it.
	txns := []models.PointsTransaction{
		txn(100, balanceNow.AddDate(0, -2, 0), expiry(balanceNow.AddDate(0, 0, -1))),
		txn(-60, balanceNow.AddDate(0, -1, 0), nil),
		txn(30, balanceNow.AddDate(0, 0, -2), nil),
	}
	b := computeBalance(txns, balanceNow)
	// 40 unspent from the first lot expired; only the fresh 30 remain.
	assert.Equal(t, int64(30), b.Total)
}

func TestComputeBalanceExpiringSoonAndDate(t *testing.T) {
	soon := expiry(balanceNow.AddDate(0, 0, 7))
	later := expiry(balanceNow.AddDate(0, 6, 0))
	txns := []models.PointsTransaction{
		txn(100, balanceNow.AddDate(0, -1, 0), soon),
		txn(200, balanceNow.AddDate(0, 0, -10), later),
	}
	b := computeBalance(txns, balanceNow)
	assert.Equal(t, int64(300), b.Total)
	assert.Equal(t, int64(100), b.ExpiringSoon)
	require.NotNil(t, b.ExpirationDate)
	assert.True(t, b.ExpirationDate.Equal(*soon))
}

func TestComputeBalanceCurrentYear(t *testing.T) {
	txns := []models.PointsTransaction{
		txn(100, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), nil),
		txn(60, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), nil),
	}
	b := computeBalance(txns, balanceNow)
	assert.Equal(t, int64(160), b.Total)
	assert.Equal(t, int64(60), b.CurrentYear)
}

func TestComputeBalanceOverdraftAbsorbsLaterEarns(t *testing.T) {
	// A manual negative adjustment larger than the current lots eats into
	// the next earn instead of going negative.
	txns := []models.PointsTransaction{
		txn(30, balanceNow.AddDate(0, -2, 0), nil),
		txn(-50, balanceNow.AddDate(0, -1, 0), nil),
		txn(100, balanceNow.AddDate(0, 0, -5), nil),
	}
	b := computeBalance(txns, balanceNow)
	assert.Equal(t, int64(80), b.Total)
}

func TestComputeBalanceSequenceMatchesRunningTotal(t *testing.T) {
	// Without expiration, the FIFO computation reduces to a plain sum.
	txns := []models.PointsTransaction{
		txn(100, balanceNow.AddDate(0, 0, -9), nil),
		txn(-30, balanceNow.AddDate(0, 0, -8), nil),
		txn(25, balanceNow.AddDate(0, 0, -7), nil),
		txn(-5, balanceNow.AddDate(0, 0, -6), nil),
	}
	b := computeBalance(txns, balanceNow)
	assert.Equal(t, int64(90), b.Total)
}
