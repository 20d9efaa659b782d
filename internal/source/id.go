package source

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NewID derives a deterministic source_id as "<prefix>-<md5 hex>" over the
// NFKC-normalized parts, each separated by a NUL byte. The same article
// always maps to the same id across runs and processes.
func NewID(prefix string, parts ...string) string {
	h := md5.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(norm.NFKC.String(strings.TrimSpace(p))))
	}
	return prefix + "-" + hex.EncodeToString(h.Sum(nil))
}

// slug lowercases name and replaces runs of non-alphanumerics with "-".
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
