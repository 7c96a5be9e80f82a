package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Email          *string        `json:"email" db:"email"`
	Phone          *string        `json:"phone" db:"phone"`
	PasswordHash   *string        `json:"-" db:"password_hash"`
	FullName       *string        `json:"full_name" db:"full_name"`
	Avatar         *string        `json:"avatar,omitempty" db:"avatar"`
	Role           string         `json:"role" db:"role"`
	MembershipRole MembershipRole `json:"membership_role" db:"membership_role"`
	Points         int64          `json:"points" db:"points"`
	ReferralCount  int            `json:"referral_count" db:"referral_count"`
	ReferralCode   *string        `json:"referral_code,omitempty" db:"referral_code"`
	ReferredByID   *uuid.UUID     `json:"referred_by_id,omitempty" db:"referred_by_id"`
	RoleAdvancedAt *time.Time     `json:"role_advanced_at,omitempty" db:"role_advanced_at"`
	PushToken      *string        `json:"-" db:"push_token"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

func (User) TableName() string {
	return "users"
}

func (User) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT UNIQUE,
		phone TEXT UNIQUE,
		password_hash TEXT,
		full_name TEXT,
		avatar TEXT,
		role TEXT DEFAULT 'user',
		membership_role TEXT NOT NULL DEFAULT 'supporter',
		points BIGINT NOT NULL DEFAULT 0,
		referral_count INTEGER NOT NULL DEFAULT 0,
		referral_code TEXT UNIQUE,
		referred_by_id UUID,
		role_advanced_at TIMESTAMP WITH TIME ZONE,
		push_token TEXT,
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);`
}
