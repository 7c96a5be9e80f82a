package services

import (
	"database/sql"
	"fmt"

	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/models"
)

// SettingsService reads and writes organization-wide policy. The
// advancement mode is deliberately re-read on every evaluation rather than
// cached, so an admin flipping it applies to the very next check.
type SettingsService struct {
	db *database.DB
}

func NewSettingsService(db *database.DB) *SettingsService {
	return &SettingsService{db: db}
}

// AdvancementMode returns the organization-wide mode, defaulting to
// automatic when the setting row is missing.
func (s *SettingsService) AdvancementMode() (string, error) {
	return advancementMode(s.db)
}

func advancementMode(q dbtx) (string, error) {
	var mode string
	err := q.QueryRow(`SELECT value FROM organization_settings WHERE key = $1`, models.SettingAdvancementMode).Scan(&mode)
	if err == sql.ErrNoRows {
		return models.AdvancementAutomatic, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read advancement mode: %w", err)
	}
	if mode != models.AdvancementAutomatic && mode != models.AdvancementApprovalRequired {
		return "", fmt.Errorf("invalid advancement mode %q in organization_settings", mode)
	}
	return mode, nil
}

// SetAdvancementMode updates the organization-wide mode.
func (s *SettingsService) SetAdvancementMode(mode string) error {
	if mode != models.AdvancementAutomatic && mode != models.AdvancementApprovalRequired {
		return fmt.Errorf("invalid advancement mode %q", mode)
	}
	_, err := s.db.Exec(`
		INSERT INTO organization_settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		models.SettingAdvancementMode, mode)
	if err != nil {
		return fmt.Errorf("failed to set advancement mode: %w", err)
	}
	return nil
}
