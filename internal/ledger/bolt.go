package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// BoltFile is the ledger's file name inside the data directory.
const BoltFile = "ledger.db"

var bucketSelfDestruct = []byte("self_destruct")

// Bolt is a bbolt-backed Ledger. Each record is stored under its message id
// in the self_destruct bucket.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) dataDir/ledger.db.
func OpenBolt(dataDir string) (*Bolt, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("ledger: data dir must not be empty")
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("ledger: create data dir: %w", err)
	}
	path := filepath.Join(dataDir, BoltFile)

	db, err := bbolt.Open(path, 0o640, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSelfDestruct)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: init bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Register(_ context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketSelfDestruct)
		if bkt.Get([]byte(id)) != nil {
			return nil
		}
		return bkt.Put([]byte(id), marshalRecord(Record{CreatedAt: time.Now()}))
	})
}

func (b *Bolt) IsViewed(_ context.Context, id string) (bool, error) {
	var viewed bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(bucketSelfDestruct).Get([]byte(id))
		if val == nil {
			return nil
		}
		rec, err := unmarshalRecord(val)
		if err != nil {
			return err
		}
		viewed = rec.Viewed
		return nil
	})
	return viewed, err
}

func (b *Bolt) MarkViewed(_ context.Context, id string) (Mark, error) {
	mark := MarkMissing
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketSelfDestruct)
		val := bkt.Get([]byte(id))
		if val == nil {
			return nil
		}
		rec, err := unmarshalRecord(val)
		if err != nil {
			return err
		}
		if rec.Viewed {
			mark = MarkAlready
			return nil
		}
		rec.Viewed = true
		if err := bkt.Put([]byte(id), marshalRecord(rec)); err != nil {
			return err
		}
		mark = MarkFlipped
		return nil
	})
	if err != nil {
		return MarkMissing, err
	}
	return mark, nil
}

func (b *Bolt) Prune(_ context.Context, cutoff time.Time) (int, error) {
	n := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketSelfDestruct)
		var expired [][]byte
		if err := bkt.ForEach(func(k, v []byte) error {
			// Unreadable records are dropped along with expired ones.
			if rec, err := unmarshalRecord(v); err != nil || rec.CreatedAt.Before(cutoff) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range expired {
			if err := bkt.Delete(k); err != nil {
				return err
			}
		}
		n = len(expired)
		return nil
	})
	return n, err
}

// ForEach calls fn for every stored record in key order, stopping at the
// first error. Ids are ULID based, so key order is creation order.
func (b *Bolt) ForEach(fn func(Record) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSelfDestruct).ForEach(func(k, v []byte) error {
			rec, err := unmarshalRecord(v)
			if err != nil {
				return err
			}
			rec.MessageID = string(k)
			return fn(rec)
		})
	})
}

// Close closes the underlying bbolt database.
func (b *Bolt) Close() error { return b.db.Close() }

// ---- serialisation helpers -------------------------------------------------
// Record values are a fixed 9-byte layout; the message id is the key:
//
//	[viewed    : 1 byte          ]
//	[createdMs : 8 bytes, int64  ]

const recordSize = 9

func marshalRecord(r Record) []byte {
	buf := make([]byte, recordSize)
	if r.Viewed {
		buf[0] = 1
	}
	binary.BigEndian.PutUint64(buf[1:], uint64(r.CreatedAt.UnixMilli()))
	return buf
}

func unmarshalRecord(buf []byte) (Record, error) {
	if len(buf) < recordSize {
		return Record{}, fmt.Errorf("ledger: record too short (%d bytes)", len(buf))
	}
	return Record{
		Viewed:    buf[0] == 1,
		CreatedAt: time.UnixMilli(int64(binary.BigEndian.Uint64(buf[1:]))),
	}, nil
}
