package dedup

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"sift/pkg/models"
)

// Hasher computes the suppression fingerprint of an inbound event.
type Hasher struct {
	algorithm string
}

func NewHasher(algorithm string) *Hasher {
	return &Hasher{algorithm: algorithm}
}

// Fingerprint builds a deterministic digest over the event's headers, body
// and source address. Header names are case-folded and sorted so that two
// requests differing only in header casing or ordering collide.
func (h *Hasher) Fingerprint(event models.InboundEvent) string {
	var builder strings.Builder

	keys := make([]string, 0, len(event.Headers))
	folded := make(map[string]string, len(event.Headers))
	for name, value := range event.Headers {
		key := strings.ToLower(name)
		keys = append(keys, key)
		folded[key] = value
	}
	sort.Strings(keys)

	for _, key := range keys {
		builder.WriteString(key)
		builder.WriteString("=")
		builder.WriteString(folded[key])
		builder.WriteString("|")
	}
	builder.Write(event.Body)
	builder.WriteString("|")
	builder.WriteString(event.IPAddress)

	input := builder.String()

	switch h.algorithm {
	case "sha256":
		sum := sha256.Sum256([]byte(input))
		return hex.EncodeToString(sum[:])
	case "md5":
		sum := md5.Sum([]byte(input))
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256([]byte(input))
		return hex.EncodeToString(sum[:])
	}
}
