package types

import (
	"strings"
	"time"
)

// Identity is a registered person or vehicle.  Code is the badge payload or
// face recognition label and is unique across all identities.
type Identity struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Code      string    `json:"code"`
	BadgeRef  string    `json:"badge_ref"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeCode trims and upper-cases a registration or lookup code.
// Badge payloads are printed from the normalized form, so lookups must
// normalize the same way.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Code     string `json:"code"`
}
