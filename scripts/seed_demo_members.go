package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// Demo members across the role ladder, with enough ledger history to make
// the progress and leaderboard screens look lived-in. Run against a scratch
// database only.
var demoMembers = []struct {
	Email    string
	FullName string
	Role     string
	Points   int64
	Streak   int
}{
	{"aisha.demo@example.org", "Aisha Demo", "leader", 2100, 120},
	{"omar.demo@example.org", "Omar Demo", "activist", 780, 45},
	{"fatima.demo@example.org", "Fatima Demo", "member", 310, 12},
	{"yusuf.demo@example.org", "Yusuf Demo", "member", 160, 3},
	{"leila.demo@example.org", "Leila Demo", "supporter", 95, 8},
	{"karim.demo@example.org", "Karim Demo", "supporter", 20, 1},
}

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash demo password:", err)
	}

	for i, m := range demoMembers {
		userID := uuid.New()
		code := fmt.Sprintf("DEMO%04d", i+1)

		res, err := db.Exec(`
			INSERT INTO users (id, email, password_hash, full_name, membership_role, referral_code, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE, now() - INTERVAL '1 day' * $7)
			ON CONFLICT (email) DO NOTHING`,
			userID, m.Email, string(hash), m.FullName, m.Role, code, m.Streak+30)
		if err != nil {
			log.Fatal("Failed to insert demo member:", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			log.Printf("Skipping %s (already seeded)", m.Email)
			continue
		}

		if err := seedLedger(db, userID, m.Points); err != nil {
			log.Fatal("Failed to seed ledger:", err)
		}
		if err := seedStreak(db, userID, m.Streak); err != nil {
			log.Fatal("Failed to seed streak:", err)
		}
		log.Printf("Seeded %s (%s, %d pts, %d day streak)", m.FullName, m.Role, m.Points, m.Streak)
	}

	log.Println("Demo data populated")
}

// seedLedger writes earn transactions totalling the target amount and keeps
// the cached users.points column in agreement with them.
func seedLedger(db *sql.DB, userID uuid.UUID, total int64) error {
	remaining := total
	day := 0
	for remaining > 0 {
		amount := int64(25)
		if remaining < amount {
			amount = remaining
		}
		expires := time.Now().AddDate(1, 0, 0)
		_, err := db.Exec(`
			INSERT INTO points_transactions (id, user_id, amount, type, reference_type, reference_id, description, expires_at, created_at)
			VALUES ($1, $2, $3, 'earn_task', 'task', $4, 'Seeded demo task', $5, now() - INTERVAL '1 day' * $6)`,
			uuid.New(), userID, amount, uuid.NewString(), expires, day)
		if err != nil {
			return err
		}
		remaining -= amount
		day++
	}

	_, err := db.Exec(`UPDATE users SET points = $1 WHERE id = $2`, total, userID)
	return err
}

func seedStreak(db *sql.DB, userID uuid.UUID, days int) error {
	if days <= 0 {
		return nil
	}
	_, err := db.Exec(`
		INSERT INTO streaks (user_id, current_streak, longest_streak, total_days, last_activity_date)
		VALUES ($1, $2, $2, $2, CURRENT_DATE)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, days)
	return err
}
