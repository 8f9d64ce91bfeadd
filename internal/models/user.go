package models

import (
	"strings"
	"time"
	"unicode"
)

// User represents a registered account.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Profile is the public view of a user shown in the dashboard header.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Initials  string    `json:"initials"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile strips the password hash and derives the avatar initials.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Initials:  Initials(u.Name),
		CreatedAt: u.CreatedAt,
	}
}

// Initials returns the upper-cased first letters of the first and last words
// of name, or just the first word's letter when there is only one word.
func Initials(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return ""
	}

	first := firstRune(parts[0])
	if len(parts) == 1 {
		return strings.ToUpper(string(first))
	}

	last := firstRune(parts[len(parts)-1])
	return strings.ToUpper(string([]rune{first, last}))
}

func firstRune(s string) rune {
	for _, r := range s {
		return unicode.ToUpper(r)
	}
	return 0
}
