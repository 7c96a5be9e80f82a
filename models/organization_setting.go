package models

import "time"

// OrganizationSetting is a key/value row for organization-wide policy.
// The advancement mode lives here and is read fresh on every evaluation so
// an admin change applies immediately.
type OrganizationSetting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const SettingAdvancementMode = "advancement_mode"

func (OrganizationSetting) TableName() string {
	return "organization_settings"
}

func (OrganizationSetting) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS organization_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);`
}
