package domain

import (
	"strings"

	"github.com/google/uuid"
)

// NewID generates a prefixed identifier, e.g. NewID("bk") -> "bk_4f2a...".
// Prefixes in use: evt (events), bk (bookings), pay (payments), ref (refunds).
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
