// Package ledger records which self-destructing messages have been viewed.
//
// The ledger is the only state encodex keeps: one record per message id,
// created unviewed at encode time and flipped to viewed exactly once at
// decode time. Backends:
//
//   - Memory: process-local, for tests and the CLI's --ephemeral mode
//   - Bolt:   single bbolt file under the data directory (default)
//   - Redis:  shared between server replicas, records expire by TTL
//
// All implementations are safe for concurrent use and read-after-write
// consistent for a single id.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/snehjoshi/encodex/internal/config"
)

// Ledger is the persistence boundary of the self-destruct feature.
type Ledger interface {
	// Register records id as unviewed. Registering an existing id keeps its
	// current state.
	Register(ctx context.Context, id string) error

	// IsViewed reports whether id has been viewed. Unknown ids are unviewed.
	IsViewed(ctx context.Context, id string) (bool, error)

	// MarkViewed flips id to viewed. The check and the flip are atomic, so of
	// any number of concurrent calls for one id exactly one gets MarkFlipped.
	// Marking an already viewed id is a no-op reported as MarkAlready.
	MarkViewed(ctx context.Context, id string) (Mark, error)

	// Prune deletes records registered before cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

// Lister is implemented by ledgers that can enumerate their records. Redis
// does not: its records expire on their own and are never listed.
type Lister interface {
	// ForEach calls fn for every record in message id order, stopping at the
	// first error.
	ForEach(fn func(Record) error) error
}

// Mark is the outcome of MarkViewed.
type Mark int

const (
	MarkMissing Mark = iota // no record for the id
	MarkFlipped             // this call flipped the record to viewed
	MarkAlready             // the record was already viewed
)

// Found reports whether a record existed.
func (m Mark) Found() bool { return m != MarkMissing }

// Record is the stored state of one message.
type Record struct {
	MessageID string
	Viewed    bool
	CreatedAt time.Time
}

// Open builds the ledger selected by cfg.
func Open(ctx context.Context, cfg config.LedgerConfig) (Ledger, error) {
	switch cfg.Backend {
	case config.LedgerMemory:
		return NewMemory(), nil
	case config.LedgerBolt:
		return OpenBolt(cfg.DataDir)
	case config.LedgerRedis:
		retention, err := cfg.RetentionDuration()
		if err != nil {
			return nil, err
		}
		return OpenRedis(ctx, cfg.RedisAddr, retention)
	default:
		return nil, fmt.Errorf("ledger: unknown backend %q", cfg.Backend)
	}
}
