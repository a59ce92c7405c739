package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

// FingerprintPrefix namespaces cached drafts.
const FingerprintPrefix = "itinerary:draft:"

// Fingerprint derives the cache key for req from city, days, interests,
// budget and pace. Case, whitespace, and interest order and duplicates do
// not affect the key.
func Fingerprint(req *domain.GenerationRequest) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(req.City)),
		strconv.Itoa(req.Days),
		strings.Join(req.NormalizedInterests(), ","),
		strings.ToLower(strings.TrimSpace(req.Budget)),
		strings.ToLower(strings.TrimSpace(req.Pace)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return FingerprintPrefix + hex.EncodeToString(sum[:])
}
