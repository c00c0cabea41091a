// Package transform holds the four reversible text transforms a message can
// be encoded with, and a registry that looks them up by wire name.
//
// Every transform is a pure function pair over in-memory strings and is safe
// for concurrent use.
package transform

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Method is the wire name of a transform, as carried in the metadata "type"
// field of an envelope.
type Method string

const (
	MethodSubstitution Method = "simple"
	MethodCaesar       Method = "caesar"
	MethodBase64       Method = "base64"
	MethodEmoji        Method = "emoji"
)

// ErrUnknownMethod is returned when a method name has no registered transform.
var ErrUnknownMethod = errors.New("transform: unknown method")

// Valid reports whether m names one of the four built-in methods.
func (m Method) Valid() bool {
	switch m {
	case MethodSubstitution, MethodCaesar, MethodBase64, MethodEmoji:
		return true
	}
	return false
}

func (m Method) String() string { return string(m) }

// ParseMethod accepts the wire names plus the long aliases "substitution"
// and "emoji-substitution".
func ParseMethod(s string) (Method, error) {
	switch s {
	case "simple", "substitution":
		return MethodSubstitution, nil
	case "caesar":
		return MethodCaesar, nil
	case "base64":
		return MethodBase64, nil
	case "emoji", "emoji-substitution":
		return MethodEmoji, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Transform is a reversible text encoding.
type Transform interface {
	// Method returns the wire name of the transform.
	Method() Method

	// Description returns a human-readable description.
	Description() string

	// Encode applies the transform. It never fails.
	Encode(text string) string

	// Decode reverses Encode. Transforms that can reject their input
	// (Base64) return an error, which callers treat as "wrong method".
	Decode(text string) (string, error)
}

// ─── Registry ─────────────────────────────────────────────────────────────────

var (
	registry   = make(map[Method]Transform)
	registryMu sync.RWMutex
)

// Register adds t to the registry. Registering the same method twice is an
// error.
func Register(t Transform) error {
	if t == nil {
		return errors.New("transform: cannot register nil transform")
	}
	m := t.Method()
	if m == "" {
		return errors.New("transform: method name cannot be empty")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[m]; exists {
		return fmt.Errorf("transform: %s is already registered", m)
	}
	registry[m] = t
	return nil
}

// Get returns the registered transform for m.
//
// Caesar is registered with the default shift of 3; callers that carry an
// explicit shift should construct Caesar{Shift: n} directly.
func Get(m Method) (Transform, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[m]
	return t, ok
}

// List returns every registered transform sorted by method name.
func List() []Transform {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Transform, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method() < out[j].Method() })
	return out
}

// For returns the transform to use for m with the given Caesar shift.
// shift is ignored for every other method.
func For(m Method, shift int) (Transform, error) {
	if m == MethodCaesar {
		return Caesar{Shift: shift}, nil
	}
	t, ok := Get(m)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, m)
	}
	return t, nil
}

func init() {
	for _, t := range []Transform{
		Substitution{},
		Caesar{Shift: DefaultShift},
		Base64{},
		Emoji{},
	} {
		if err := Register(t); err != nil {
			panic(err)
		}
	}
}
