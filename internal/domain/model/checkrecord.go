package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// CheckIDLength is the length of a short check identifier.
const CheckIDLength = 6

// CheckID derives a candidate short identifier for a credential payload. The
// salt varies per call (typically wall-clock nanoseconds) and attempt is the
// collision disambiguator, starting at 0.
func CheckID(payload string, salt int64, attempt int) string {
	h := sha256.New()
	h.Write([]byte(payload))
	h.Write([]byte(strconv.FormatInt(salt, 10)))
	if attempt > 0 {
		h.Write([]byte(strconv.Itoa(attempt)))
	}
	return hex.EncodeToString(h.Sum(nil))[:CheckIDLength]
}

// ValidCheckID reports whether s has the shape of a short check identifier.
func ValidCheckID(s string) bool {
	if len(s) != CheckIDLength {
		return false
	}
	for _, r := range s {
		if !('0' <= r && r <= '9' || 'a' <= r && r <= 'f') {
			return false
		}
	}
	return true
}

// VerificationRequest is what is forwarded to the inbox-check service.
type VerificationRequest struct {
	Address      string
	Secret       string
	RefreshToken string
	ClientID     string
	Purpose      string
}

// NewVerificationRequest builds the request for a stored credential.
func NewVerificationRequest(cred Credential, purpose string) VerificationRequest {
	return VerificationRequest{
		Address:      cred.Address,
		Secret:       cred.Secret,
		RefreshToken: cred.RefreshToken,
		ClientID:     cred.ClientID,
		Purpose:      purpose,
	}
}

// VerificationResult is a successful answer from the inbox-check service.
// Found is false when the service answered but had no code.
type VerificationResult struct {
	Found     bool
	Code      string
	Message   string
	Sender    string
	Timestamp string
}
