package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose identifies the flow a signed token was minted for.
// The set is closed: only the constants below are valid.
type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email-verification"
	PurposePasswordReset     TokenPurpose = "password-reset"
	PurposeLogin             TokenPurpose = "login"
)

// Purposes lists every valid purpose
var Purposes = []TokenPurpose{
	PurposeEmailVerification,
	PurposePasswordReset,
	PurposeLogin,
}

// Valid reports whether p is one of the known purposes
func (p TokenPurpose) Valid() bool {
	switch p {
	case PurposeEmailVerification, PurposePasswordReset, PurposeLogin:
		return true
	}
	return false
}

func (p TokenPurpose) String() string {
	return string(p)
}

// TokenClaims is the payload of every signed token. Subject carries the user id.
type TokenClaims struct {
	Purpose TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token
func (c *TokenClaims) UserID() string {
	return c.Subject
}
