/*
id.go - Collision-resistant, sortable, prefixed identifiers

PURPOSE:
  Generates identifiers for campaigns and events. The format alone tells
  you the entity kind, so validation is a string check with no database
  round-trip:

    cmp_0000h5k3tqag4x8m2p7rde   (campaign)
    evt_0000h5k3tqbz9w1c6t3nfs   (event)

CONSTRUCTION:
  <prefix>_<10-char base-32 milliseconds><10-char random tail>

  The timestamp component makes ids lexicographically sortable by creation
  time. The random tail comes from UUID entropy, so ids never collide
  across processes.
*/
package campaign

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityKind selects the identifier prefix.
type EntityKind string

const (
	// KindCampaign prefixes campaign identifiers.
	KindCampaign EntityKind = "cmp"
	// KindEvent prefixes event identifiers.
	KindEvent EntityKind = "evt"
)

// Crockford base-32, lowercased. Sorts the same as the encoded integers.
const idAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

const (
	idTimeWidth   = 10
	idRandomWidth = 10
)

// NewID generates a fresh identifier for the given entity kind.
func NewID(kind EntityKind) string {
	var b strings.Builder
	b.Grow(len(kind) + 1 + idTimeWidth + idRandomWidth)
	b.WriteString(string(kind))
	b.WriteByte('_')
	b.WriteString(encodeBase32(uint64(time.Now().UnixMilli()), idTimeWidth))

	// 5 random bits per character from UUID entropy.
	u := uuid.New()
	for i := 0; i < idRandomWidth; i++ {
		b.WriteByte(idAlphabet[u[i]&31])
	}
	return b.String()
}

// IsValidID reports whether s is a well-formed identifier of the given kind.
func IsValidID(kind EntityKind, s string) bool {
	prefix := string(kind) + "_"
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	body := s[len(prefix):]
	if len(body) != idTimeWidth+idRandomWidth {
		return false
	}
	for i := 0; i < len(body); i++ {
		if !strings.ContainsRune(idAlphabet, rune(body[i])) {
			return false
		}
	}
	return true
}

// encodeBase32 renders v in base 32 left-padded to width characters.
func encodeBase32(v uint64, width int) string {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = idAlphabet[v&31]
		v >>= 5
	}
	return string(buf)
}
