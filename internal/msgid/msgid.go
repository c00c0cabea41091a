// Package msgid generates the identifiers of self-destructing messages.
//
// An ID is "msg_" followed by a ULID, so ids sort by creation time and the
// creation instant can be read back without a ledger lookup.
package msgid

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefix starts every message id.
const Prefix = "msg_"

// ErrInvalid is returned for strings that are not message ids.
var ErrInvalid = errors.New("msgid: invalid message id")

// ID identifies one self-destructing message.
type ID string

func (id ID) String() string { return string(id) }

// IsZero reports whether the ID is the zero value.
func (id ID) IsZero() bool { return id == "" }

// Time returns the creation time encoded in the id.
func (id ID) Time() (time.Time, error) {
	u, err := parse(string(id))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}

// One monotonic entropy source keeps ids ordered within a millisecond.
var (
	monoMu      sync.Mutex
	monoEntropy io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh id stamped with the current time.
func New() (ID, error) {
	return NewAt(time.Now())
}

// NewAt returns a fresh id stamped with t.
func NewAt(t time.Time) (ID, error) {
	monoMu.Lock()
	defer monoMu.Unlock()
	u, err := ulid.New(ulid.Timestamp(t), monoEntropy)
	if err != nil {
		return "", fmt.Errorf("msgid: generate: %w", err)
	}
	return ID(Prefix + u.String()), nil
}

// Parse validates s and returns it as an ID.
func Parse(s string) (ID, error) {
	if _, err := parse(s); err != nil {
		return "", err
	}
	return ID(s), nil
}

func parse(s string) (ulid.ULID, error) {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return ulid.ULID{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	u, err := ulid.ParseStrict(rest)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	return u, nil
}
