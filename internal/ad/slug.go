package ad

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// newSlug derives a unique, human-readable slug from the listing's
// attributes. The random suffix and timestamp keep it globally unique;
// the slug is regenerated on every update.
func newSlug(propertyType PropertyType, action Action, address, price string) string {
	return slugify(fmt.Sprintf("%s-for-%s-address-%s-at-price-%s-%s-%d",
		propertyType, action, address, price, randomSuffix(), time.Now().UnixMilli()))
}

// slugify lowercases s and collapses every run of non-alphanumeric
// characters into a single hyphen.
func slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}

// randomSuffix returns 6 random hex characters.
func randomSuffix() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%06x", time.Now().UnixNano()&0xffffff)
	}
	return hex.EncodeToString(b)
}
