package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity carried by a session token.
type Claims struct {
	EntityNumber   string `json:"entity_number"`
	EmployeeNumber string `json:"employee_number"`
	SessionNumber  string `json:"session_number,omitempty"`
	jwt.RegisteredClaims
}

// Complete reports whether both required identifiers are present.
func (c *Claims) Complete() bool {
	return c != nil &&
		strings.TrimSpace(c.EntityNumber) != "" &&
		strings.TrimSpace(c.EmployeeNumber) != ""
}

// IssuedTime returns iat, or the zero time when absent.
func (c *Claims) IssuedTime() time.Time {
	if c == nil || c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresTime returns exp, or the zero time when absent.
func (c *Claims) ExpiresTime() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
