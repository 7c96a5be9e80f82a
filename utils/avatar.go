package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

// avatarPalette holds the background colors used for initials avatars.
var avatarPalette = []string{
	"2C3E50", "C0392B", "27AE60", "2980B9", "8E44AD",
	"D35400", "16A085", "7F8C8D",
}

var avatarStyles = []string{"avataaars", "personas", "micah", "miniavs", "bottts"}

// MemberAvatarURL builds a DiceBear initials avatar seeded from the
// member's name, falling back to a random abstract style when no initials
// can be derived.
func MemberAvatarURL(fullName string) string {
	initials := InitialsFromName(fullName)
	if initials == "" {
		seed, _ := rand.Int(rand.Reader, big.NewInt(1000000))
		return fmt.Sprintf("https://api.dicebear.com/7.x/%s/svg?seed=%d", pick(avatarStyles), seed.Int64())
	}
	return fmt.Sprintf("https://api.dicebear.com/7.x/initials/svg?seed=%s&backgroundColor=%s",
		url.QueryEscape(initials), pick(avatarPalette))
}

// InitialsFromName takes the first letter of the first two words of a
// name, uppercased. A single-word name yields a single letter.
func InitialsFromName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	initials := string([]rune(fields[0])[0])
	if len(fields) > 1 {
		initials += string([]rune(fields[1])[0])
	}
	return strings.ToUpper(initials)
}

func pick(options []string) string {
	i, _ := rand.Int(rand.Reader, big.NewInt(int64(len(options))))
	return options[i.Int64()]
}
