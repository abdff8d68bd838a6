// Package idgen generates the prefixed identifiers used for events,
// sessions, reports and websocket clients.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Prefixes for the IDs handed out by the simulator.
const (
	PrefixEvent   = "evt_"
	PrefixSession = "ses_"
	PrefixReport  = "rpt_"
	PrefixClient  = "ws_"
)

// New returns a random (v4) UUID string, used for request IDs.
func New() string {
	return uuid.NewString()
}

// WithPrefix returns prefix followed by 24 random hex chars.
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// Sortable returns prefix followed by a v7 UUID without dashes. IDs made
// later compare greater, so they can break ties in time-ordered listings.
func Sortable(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		return WithPrefix(prefix)
	}
	return prefix + strings.ReplaceAll(id.String(), "-", "")
}
