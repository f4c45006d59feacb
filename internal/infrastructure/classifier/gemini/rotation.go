package gemini

import (
	"fmt"
	"strings"
	"sync"
)

// KeyRing hands out API credentials round-robin, one per classifier call
// (not per item), spreading load across the quota allowances of several
// keys. It is an explicit object so callers and tests control rotation
// order instead of relying on process-wide state.
type KeyRing struct {
	mu   sync.Mutex
	keys []string
	next int
}

func NewKeyRing(keys []string) (*KeyRing, error) {
	clean := make([]string, 0, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			clean = append(clean, key)
		}
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("key ring needs at least one credential")
	}
	return &KeyRing{keys: clean}, nil
}

func (r *KeyRing) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.keys[r.next]
	r.next = (r.next + 1) % len(r.keys)
	return key
}

func (r *KeyRing) Size() int {
	return len(r.keys)
}
