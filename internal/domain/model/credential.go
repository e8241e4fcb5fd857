package model

import (
	"fmt"
	"strings"
)

// credentialSeparator delimits the fields of a provisioned credential line.
const credentialSeparator = "|"

// Credential is one mail unit as provisioned: an address, its secret and the
// OAuth refresh token and client ID needed to read the inbox. Any trailing
// fields beyond the four known ones are kept verbatim in Extra.
type Credential struct {
	Address      string
	Secret       string
	RefreshToken string
	ClientID     string
	Extra        []string
}

// ParseCredential splits a provisioned line into its fields. Surrounding
// whitespace on the line is dropped; the fields themselves are kept as-is so
// that Line reproduces the parsed tuple exactly.
func ParseCredential(line string) (Credential, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Credential{}, fmt.Errorf("%w: empty credential line", ErrInvalidInput)
	}

	parts := strings.Split(line, credentialSeparator)
	if len(parts) < 2 || parts[0] == "" {
		return Credential{}, fmt.Errorf("%w: credential line needs at least address|secret", ErrInvalidInput)
	}

	cred := Credential{Address: parts[0], Secret: parts[1]}
	if len(parts) > 2 {
		cred.RefreshToken = parts[2]
	}
	if len(parts) > 3 {
		cred.ClientID = parts[3]
	}
	if len(parts) > 4 {
		cred.Extra = append([]string(nil), parts[4:]...)
	}
	return cred, nil
}

// Line renders the credential back into its delimited form. Empty refresh
// token and client ID fields at the end of the line are omitted, so
// "a@x|pw||" renders as "a@x|pw". Parsing either form yields the same
// Credential, and check identifiers are derived from this normalized line.
func (c Credential) Line() string {
	fields := []string{c.Address, c.Secret}
	if c.RefreshToken != "" || c.ClientID != "" || len(c.Extra) > 0 {
		fields = append(fields, c.RefreshToken)
	}
	if c.ClientID != "" || len(c.Extra) > 0 {
		fields = append(fields, c.ClientID)
	}
	fields = append(fields, c.Extra...)
	return strings.Join(fields, credentialSeparator)
}

// InventoryItem is an undispensed credential line together with its position
// in the inventory queue. Lower IDs were provisioned earlier.
type InventoryItem struct {
	ID   int64
	Line string
}
