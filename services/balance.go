package services

import (
	"time"

	"github.com/ailubes/veterans-orden-sub005/models"
)

// Balance summarizes a member's points as derived from the ledger.
type Balance struct {
	Total          int64      `json:"total"`
	CurrentYear    int64      `json:"current_year"`
	ExpiringSoon   int64      `json:"expiring_soon"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

const expiringSoonWindow = 30 * 24 * time.Hour

// computeBalance derives a balance from the full transaction log.
//
// Earn transactions form lots in creation order. A spend consumes the
// oldest lots that were still live at the moment the spend happened (FIFO).
// An expired lot's unconsumed remainder contributes nothing to the total,
// but spends that historically drew from it remain accounted for. This is
// the single auditable expiration rule: expiration only ever discounts
// unspent earn amounts.
//
// txns must be ordered by created_at ascending.
func computeBalance(txns []models.PointsTransaction, now time.Time) Balance {
	type lot struct {
		remaining int64
		createdAt time.Time
		expiresAt *time.Time
	}

	var lots []lot
	var overdraft int64 // negative amounts not matched by any earlier lot

	for _, t := range txns {
		if t.Amount > 0 {
			amt := t.Amount
			if overdraft > 0 {
				if amt <= overdraft {
					overdraft -= amt
					continue
				}
				amt -= overdraft
				overdraft = 0
			}
			lots = append(lots, lot{remaining: amt, createdAt: t.CreatedAt, expiresAt: t.ExpiresAt})
			continue
		}
		if t.Amount == 0 {
			continue
		}

		need := -t.Amount
		for i := range lots {
			if need == 0 {
				break
			}
			if lots[i].remaining == 0 {
				continue
			}
			// A lot already expired when the spend happened cannot have
			// funded it.
			if lots[i].expiresAt != nil && !lots[i].expiresAt.After(t.CreatedAt) {
				continue
			}
			take := lots[i].remaining
			if take > need {
				take = need
			}
			lots[i].remaining -= take
			need -= take
		}
		overdraft += need
	}

	var b Balance
	soonCutoff := now.Add(expiringSoonWindow)
	for _, l := range lots {
		if l.remaining == 0 {
			continue
		}
		if l.expiresAt != nil && !l.expiresAt.After(now) {
			continue
		}
		b.Total += l.remaining
		if l.createdAt.Year() == now.Year() {
			b.CurrentYear += l.remaining
		}
		if l.expiresAt != nil {
			if !l.expiresAt.After(soonCutoff) {
				b.ExpiringSoon += l.remaining
			}
			if b.ExpirationDate == nil || l.expiresAt.Before(*b.ExpirationDate) {
				exp := *l.expiresAt
				b.ExpirationDate = &exp
			}
		}
	}
	return b
}
