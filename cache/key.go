package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Key derives the deterministic SHA-256 fingerprint of a cacheable request:
// method, normalized path, canonicalized query (volatile params stripped,
// remainder sorted by name), and the selected header values in
// vary-header order.
//
// Operates on the raw, un-decoded path and query exactly as received:
// routing decodes path bytes for matching, but cache-key derivation does
// not, so a cache key reflects exactly what the client sent.
func Key(method, rawPath, rawQuery string, varyHeaders []string, headerValues func(string) string, denylist []string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(rawPath))
	h.Write([]byte{0})
	h.Write([]byte(canonicalizeQuery(rawQuery, denylist)))

	for _, name := range varyHeaders {
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{'='})
		h.Write([]byte(headerValues(name)))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func canonicalizeQuery(rawQuery string, denylist []string) string {
	if rawQuery == "" {
		return ""
	}

	deny := make(map[string]struct{}, len(denylist))
	for _, d := range denylist {
		deny[d] = struct{}{}
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// Malformed query: fall back to the raw bytes so the key is still
		// deterministic, just not canonicalized.
		return rawQuery
	}

	names := make([]string, 0, len(values))
	for name := range values {
		if _, skip := deny[name]; skip {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		vals := values[name]
		sort.Strings(vals)
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(vals, ","))
	}
	return b.String()
}
