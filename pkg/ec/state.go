// Package ec implements the eventual-consistency replicated state of
// spec.md §4.8/§4.9: a two-level dictionary kept in sync between one
// Producer and many Consumers over a pkg/transport.Transport.
package ec

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aikoservices/aiko/pkg/aikoerr"
)

// State is the two-level {key: scalar | {subkey: scalar}} dictionary of
// spec.md §3. Paths are dot-separated; depth beyond 2 is rejected.
type State struct {
	mu   sync.RWMutex
	root map[string]any
}

// NewState returns an empty State.
func NewState() *State {
	return &State{root: make(map[string]any)}
}

func splitPath(path string) ([]string, error) {
	parts := strings.Split(path, ".")
	if len(parts) == 0 || len(parts) > 2 {
		return nil, aikoerr.NewProtocol(fmt.Sprintf("ec: path %q exceeds the two-level depth limit", path), nil)
	}
	for _, p := range parts {
		if p == "" {
			return nil, aikoerr.NewProtocol(fmt.Sprintf("ec: malformed path %q", path), nil)
		}
	}
	return parts, nil
}

// Set applies (path, value), creating any intermediate map as needed.
func (s *State) Set(path string, value any) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(parts) == 1 {
		s.root[parts[0]] = value
		return nil
	}

	sub, _ := s.root[parts[0]].(map[string]any)
	if sub == nil {
		sub = make(map[string]any)
		s.root[parts[0]] = sub
	}
	sub[parts[1]] = value
	return nil
}

// Get returns the value at path and whether it was present.
func (s *State) Get(path string) (any, bool) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(parts) == 1 {
		v, ok := s.root[parts[0]]
		return v, ok
	}
	sub, ok := s.root[parts[0]].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := sub[parts[1]]
	return v, ok
}

// Delete removes path. Deleting a root key removes its whole subtree.
func (s *State) Delete(path string) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(parts) == 1 {
		delete(s.root, parts[0])
		return nil
	}
	if sub, ok := s.root[parts[0]].(map[string]any); ok {
		delete(sub, parts[1])
	}
	return nil
}

// entry is one flattened (path, value) pair, used for snapshotting.
type entry struct {
	path  string
	value any
}

// Entries flattens the state into a list of (path, value) pairs sorted by
// path, used to build an EC snapshot.
func (s *State) Entries() []entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entry
	for k, v := range s.root {
		if sub, ok := v.(map[string]any); ok {
			for sk, sv := range sub {
				out = append(out, entry{path: k + "." + sk, value: sv})
			}
			continue
		}
		out = append(out, entry{path: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// matchesItemNames reports whether root key matches the item_names filter
// of a stream subscription: "*" matches everything, otherwise root must
// appear in the explicit list.
func matchesItemNames(itemNames []string, root string) bool {
	for _, n := range itemNames {
		if n == "*" || n == root {
			return true
		}
	}
	return false
}

func rootKey(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}
