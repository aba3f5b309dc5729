package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint deterministically serializes the parts of a read-only command
// that affect its output, keyed to one session. Two commands that would
// produce the same payload for the same session hash to the same
// fingerprint.
func Fingerprint(sessionID string, cmd Command) string {
	var parts string
	switch cmd.Kind {
	case KindExtract:
		p := cmd.Extract
		parts = fmt.Sprintf("extract|%s|%s|%s|%s|%t|%t",
			p.Selector, p.Kind, p.AttributeName, p.PropertyName, p.Multiple, p.TrimWhitespace)
	case KindWait:
		p := cmd.Wait
		parts = fmt.Sprintf("wait|%s|%s|%s", p.Condition, p.Selector, p.ExpectedText)
	default:
		parts = string(cmd.Kind)
	}

	h := sha256.Sum256([]byte(sessionID + "|" + parts))
	return hex.EncodeToString(h[:])
}

// SessionPrefix is the portion of a fingerprint's preimage identifying the
// session. Nothing matches on it (fingerprints are opaque hashes) and
// nothing in the gateway calls it. Cache invalidation instead tracks
// fingerprints by session in a side index — see internal/cache.
func SessionPrefix(sessionID string) string {
	return sessionID
}
