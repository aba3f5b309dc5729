// Package executor implements the command executors: one function per
// command kind, each operating against a session's page, enforcing a
// hard deadline and — for mutating kinds — capturing a state-diff
// envelope. Touching last-activity and invalidating the session's cache
// entries are done by the dispatch handler, not by the executors.
package executor

import (
	"github.com/browsergate/gateway/internal/engine"
	"github.com/browsergate/gateway/internal/protocol"
)

// diff computes the coarse state-diff envelope between two page snapshots.
// It deliberately avoids a full DOM-tree diff.
func diff(before, after engine.PageInfo) protocol.StateDiff {
	return protocol.StateDiff{
		URLChanged:      before.URL != after.URL,
		TitleChanged:    before.Title != after.Title,
		ElementSetHash:  after.ElementHash,
		ElementsChanged: before.ElementHash != after.ElementHash,
	}
}
