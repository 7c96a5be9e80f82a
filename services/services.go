package services

import (
	"fmt"

	"github.com/ailubes/veterans-orden-sub005/database"
)

// Package-level service singletons, wired once at startup.
var (
	Points      *PointsService
	Streaks     *StreakService
	Referrals   *ReferralService
	Milestones  *MilestoneService
	Settings    *SettingsService
	Advancement *AdvancementService
	Catalog     *RoleCatalog
)

// Initialize loads the role catalog and constructs the engine services.
// The notifier may be nil when push delivery is not configured.
func Initialize(db *database.DB, notifier *NotificationService) error {
	catalog, err := LoadRoleCatalog(db)
	if err != nil {
		return fmt.Errorf("failed to load role catalog: %w", err)
	}

	Catalog = catalog
	Points = NewPointsService(db)
	Streaks = NewStreakService(db, notifier)
	Referrals = NewReferralService(db)
	Milestones = NewMilestoneService(db)
	Settings = NewSettingsService(db)
	Advancement = NewAdvancementService(db, catalog, notifier)
	return nil
}
