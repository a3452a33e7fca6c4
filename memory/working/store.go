package working

import (
	"context"

	"github.com/strataml/strata/core"
)

// Store is the working-tier interface: recent raw turns kept in a fast
// expiring store. Appends must preserve arrival order per session.
//
// Every operation carries an explicit workspace tag. An empty workspace is
// a caller error, never defaulted here.
type Store interface {
	// Append adds a turn to the end of the session's turn list and
	// refreshes the session's expiry.
	Append(ctx context.Context, workspace, sessionID string, turn core.Turn) error

	// Recent returns up to limit of the most recent turns, oldest first.
	Recent(ctx context.Context, workspace, sessionID string, limit int) ([]core.Turn, error)

	// Since returns all retained turns with Seq >= fromSeq, oldest first.
	// Used by promotion to collect the unpromoted range.
	Since(ctx context.Context, workspace, sessionID string, fromSeq int) ([]core.Turn, error)

	// Len returns the number of retained turns for the session.
	Len(ctx context.Context, workspace, sessionID string) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
