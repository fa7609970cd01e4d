package client

import (
	"strings"
	"time"
)

// Roles a studio login can have.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// Client is a studio customer, optionally with an app login.
type Client struct {
	ID            string    `json:"id" db:"id"`
	StudioID      string    `json:"studio_id" db:"studio_id"`
	Name          string    `json:"name" db:"name"`
	Username      string    `json:"username,omitempty" db:"username"`
	Contact       string    `json:"contact" db:"contact"`
	WhatsApp      string    `json:"whatsapp,omitempty" db:"whatsapp"`
	Notes         string    `json:"notes" db:"notes"`
	Allergies     string    `json:"allergies,omitempty" db:"allergies"`
	Password      string    `json:"password,omitempty" db:"password"`
	Role          string    `json:"role" db:"role"`
	LoyaltyPoints int       `json:"loyalty_points" db:"loyalty_points"`
	InkHistory    []string  `json:"ink_history" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Public strips the stored password hash.
func (c Client) Public() Client {
	c.Password = ""
	return c
}

// NormalizeUsername trims and lowercases a login name.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
