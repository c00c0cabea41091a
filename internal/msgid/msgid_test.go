package msgid_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/snehjoshi/encodex/internal/msgid"
)

func TestNew_Format(t *testing.T) {
	id, err := msgid.New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !strings.HasPrefix(id.String(), msgid.Prefix) {
		t.Errorf("missing prefix: %s", id)
	}
	if len(id.String()) != len(msgid.Prefix)+26 {
		t.Errorf("want %d chars, got %d: %s", len(msgid.Prefix)+26, len(id.String()), id)
	}
	if _, err := msgid.Parse(id.String()); err != nil {
		t.Errorf("Parse(New()) error: %v", err)
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[msgid.ID]bool)
	for i := 0; i < 1000; i++ {
		id, err := msgid.New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestNew_MonotonicWithinMillisecond(t *testing.T) {
	now := time.Now()
	prev, _ := msgid.NewAt(now)
	for i := 0; i < 100; i++ {
		next, err := msgid.NewAt(now)
		if err != nil {
			t.Fatalf("NewAt: %v", err)
		}
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestID_Time(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)
	id, err := msgid.NewAt(at)
	if err != nil {
		t.Fatalf("NewAt: %v", err)
	}
	got, err := id.Time()
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("want %v, got %v", at, got)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "msg_", "msg_not-a-ulid", "01HZX3Q9J8K7M6N5P4R3S2T1V0", "id_01HZX3Q9J8K7M6N5P4R3S2T1V0"} {
		if _, err := msgid.Parse(s); !errors.Is(err, msgid.ErrInvalid) {
			t.Errorf("Parse(%q): want ErrInvalid, got %v", s, err)
		}
	}
}
