package gateway

import (
	"crypto/subtle"
	"sort"
	"strings"

	"github.com/soyeahso/steve/internal/config"
)

// DefaultKeyHeader carries the API key when the config does not name one.
const DefaultKeyHeader = "RHYLIIEEE-API-KEY"

// KeyRing is the allow-list of pre-shared API keys and their principals.
type KeyRing struct {
	Header string
	keys   []keyEntry
}

type keyEntry struct {
	principal string
	key       string
}

// NewKeyRing builds a KeyRing from config. Principals without a key, or
// whose key is still an unexpanded ${VAR} reference, are skipped.
func NewKeyRing(cfg config.AuthConfig) *KeyRing {
	k := &KeyRing{Header: cfg.Header}
	if k.Header == "" {
		k.Header = DefaultKeyHeader
	}
	for principal, key := range cfg.Keys {
		if key == "" || strings.Contains(key, "${") {
			continue
		}
		k.keys = append(k.keys, keyEntry{principal: principal, key: key})
	}
	sort.Slice(k.keys, func(i, j int) bool { return k.keys[i].principal < k.keys[j].principal })
	return k
}

// Lookup returns the principal owning key. Every entry is compared so the
// time taken does not depend on which key matched.
func (k *KeyRing) Lookup(key string) (string, bool) {
	principal := ""
	for _, e := range k.keys {
		if safeEqual(key, e.key) && principal == "" {
			principal = e.principal
		}
	}
	return principal, principal != ""
}

// Len returns the number of configured keys.
func (k *KeyRing) Len() int { return len(k.keys) }

// safeEqual performs a constant-time string comparison to prevent timing attacks.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
