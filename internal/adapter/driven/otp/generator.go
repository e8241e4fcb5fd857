// Package otp implements the CodeGenerator port with TOTP (RFC 6238).
package otp

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pquerna/otp/totp"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CodeGenerator = (*Generator)(nil)

// Generator produces the current TOTP code for a base32 secret.
type Generator struct {
	now func() time.Time
}

// NewGenerator creates a Generator using the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// Generate normalizes the secret (whitespace removed, upper-cased) and
// returns the code for the current 30-second window.
func (g *Generator) Generate(secret string) (string, error) {
	secret = normalizeSecret(secret)
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret key", model.ErrInvalidInput)
	}

	code, err := totp.GenerateCode(secret, g.now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return code, nil
}

func normalizeSecret(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.ToUpper(s)
}
