package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/models"

	"github.com/google/uuid"
)

// dbtx is satisfied by both *sql.DB (via database.DB) and *sql.Tx so the
// ledger helpers can run standalone or inside a caller's transaction.
type dbtx interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// PointsService is the append-only points ledger. All writes go through it;
// users.points is only ever a derived cache of what the ledger says.
type PointsService struct {
	db *database.DB
}

func NewPointsService(db *database.DB) *PointsService {
	return &PointsService{db: db}
}

// AwardResult reports the ledger entry for an award. Duplicate is true when
// the idempotency key already existed: the prior transaction is returned and
// nothing was credited again.
type AwardResult struct {
	Transaction models.PointsTransaction `json:"transaction"`
	Duplicate   bool                     `json:"duplicate"`
}

// AwardPoints credits amount to the user, keyed by (userID, referenceType,
// referenceID, txnType). Re-delivery of the same event succeeds as a no-op.
// The user's cached balance is bumped in the same transaction as the insert.
func (s *PointsService) AwardPoints(userID uuid.UUID, amount int64, txnType, referenceType, referenceID, description string, expiresAt *time.Time) (*AwardResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("award amount must be positive, got %d", amount)
	}

	var result *AwardResult
	err := withRetry("AwardPoints", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		defer tx.Rollback()

		txn, created, err := insertTransaction(tx, userID, amount, txnType, referenceType, referenceID, description, expiresAt)
		if err != nil {
			return err
		}
		if created {
			if err := bumpPointsCache(tx, userID, amount); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		result = &AwardResult{Transaction: txn, Duplicate: !created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SpendPoints debits amount from the user, failing with
// ErrInsufficientBalance when the ledger-derived balance is short. The spend
// shares the award idempotency key, so a re-delivered checkout callback
// cannot debit twice.
func (s *PointsService) SpendPoints(userID uuid.UUID, amount int64, txnType, referenceType, referenceID, description string) (*models.PointsTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("spend amount must be positive, got %d", amount)
	}

	var spent models.PointsTransaction
	err := withRetry("SpendPoints", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		defer tx.Rollback()

		// Lock the user row so concurrent spends serialize on the balance
		// check.
		var cached int64
		err = tx.QueryRow(`SELECT points FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&cached)
		if err == sql.ErrNoRows {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock user row: %w", err)
		}

		// A re-delivered spend resolves to the row it already wrote. This
		// must happen before the balance check: the prior debit may itself
		// be why the balance is now short.
		existing, found, err := selectTransaction(tx, userID, referenceType, referenceID, txnType)
		if err != nil {
			return err
		}
		if found {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit transaction: %w", err)
			}
			spent = existing
			return nil
		}

		txns, err := loadTransactions(tx, userID)
		if err != nil {
			return err
		}
		balance := computeBalance(txns, time.Now())
		if balance.Total < amount {
			return ErrInsufficientBalance
		}

		txn, created, err := insertTransaction(tx, userID, -amount, txnType, referenceType, referenceID, description, nil)
		if err != nil {
			return err
		}
		if created {
			if err := bumpPointsCache(tx, userID, -amount); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		spent = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &spent, nil
}

// GetBalance recomputes the user's balance from the ledger. It never reads
// the users.points cache.
func (s *PointsService) GetBalance(userID uuid.UUID) (*Balance, error) {
	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	txns, err := loadTransactions(s.db, userID)
	if err != nil {
		return nil, err
	}
	balance := computeBalance(txns, time.Now())
	return &balance, nil
}

// GetHistory returns the user's transactions newest first.
func (s *PointsService) GetHistory(userID uuid.UUID, limit, offset int, txnType string) ([]models.PointsTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, user_id, amount, type, reference_type, reference_id, description, expires_at, created_at
	          FROM points_transactions WHERE user_id = $1`
	args := []interface{}{userID}
	if txnType != "" {
		query += ` AND type = $2`
		args = append(args, txnType)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	history := []models.PointsTransaction{}
	for rows.Next() {
		var t models.PointsTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.ReferenceType, &t.ReferenceID, &t.Description, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		history = append(history, t)
	}
	return history, rows.Err()
}

// insertTransaction writes a ledger row, resolving an idempotency-key
// collision to the existing row. The second return value is false when the
// row already existed.
func insertTransaction(q dbtx, userID uuid.UUID, amount int64, txnType, referenceType, referenceID, description string, expiresAt *time.Time) (models.PointsTransaction, bool, error) {
	txn := models.PointsTransaction{
		UserID:        userID,
		Amount:        amount,
		Type:          txnType,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		ExpiresAt:     expiresAt,
	}
	if description != "" {
		txn.Description = &description
	}

	err := q.QueryRow(`
		INSERT INTO points_transactions (user_id, amount, type, reference_type, reference_id, description, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, reference_type, reference_id, type) DO NOTHING
		RETURNING id, created_at`,
		userID, amount, txnType, referenceType, referenceID, txn.Description, expiresAt,
	).Scan(&txn.ID, &txn.CreatedAt)

	if err == nil {
		return txn, true, nil
	}
	if err != sql.ErrNoRows {
		return txn, false, fmt.Errorf("failed to insert transaction: %w", err)
	}

	// Key collision: someone already credited this event. Return theirs.
	existing, found, err := selectTransaction(q, userID, referenceType, referenceID, txnType)
	if err != nil {
		return txn, false, err
	}
	if !found {
		return txn, false, fmt.Errorf("transaction for key (%s, %s, %s) conflicted but could not be loaded", referenceType, referenceID, txnType)
	}
	return existing, false, nil
}

// selectTransaction looks up the ledger row for an idempotency key.
func selectTransaction(q dbtx, userID uuid.UUID, referenceType, referenceID, txnType string) (models.PointsTransaction, bool, error) {
	var t models.PointsTransaction
	err := q.QueryRow(`
		SELECT id, user_id, amount, type, reference_type, reference_id, description, expires_at, created_at
		FROM points_transactions
		WHERE user_id = $1 AND reference_type = $2 AND reference_id = $3 AND type = $4`,
		userID, referenceType, referenceID, txnType,
	).Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.ReferenceType,
		&t.ReferenceID, &t.Description, &t.ExpiresAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, false, nil
	}
	if err != nil {
		return t, false, fmt.Errorf("failed to load existing transaction: %w", err)
	}
	return t, true, nil
}

func bumpPointsCache(q dbtx, userID uuid.UUID, delta int64) error {
	result, err := q.Exec(`UPDATE users SET points = points + $1 WHERE id = $2`, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to update points cache: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check points cache update: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// loadTransactions reads a user's full ledger oldest first, the order
// computeBalance needs.
func loadTransactions(q dbtx, userID uuid.UUID) ([]models.PointsTransaction, error) {
	rows, err := q.Query(`
		SELECT id, user_id, amount, type, reference_type, reference_id, description, expires_at, created_at
		FROM points_transactions
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.PointsTransaction
	for rows.Next() {
		var t models.PointsTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.ReferenceType, &t.ReferenceID, &t.Description, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
