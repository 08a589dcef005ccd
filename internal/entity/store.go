package entity

import (
	"sort"
	"sync"
)

// Store is the in-memory collection of locally known entities, keyed by
// action ID.
//
// The store is owned by the reconciler: only reconciliation passes insert
// and remove entities. Other components (the API, sinks) read it. After a
// completed pass the store's key set equals the remote action key set
// exactly.
//
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewStore creates an empty entity store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]*Entity),
	}
}

// Insert adds an entity to the store.
// Returns ErrEntityExists if the action ID is already present.
func (s *Store) Insert(e *Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[e.ActionID]; ok {
		return ErrEntityExists
	}
	s.entities[e.ActionID] = e
	return nil
}

// Remove deletes the entity for the given action ID and returns it.
// Returns ErrEntityNotFound if the key is unknown.
func (s *Store) Remove(actionID string) (*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[actionID]
	if !ok {
		return nil, ErrEntityNotFound
	}
	delete(s.entities, actionID)
	return e, nil
}

// Get retrieves the entity for the given action ID.
// Returns ErrEntityNotFound if the key is unknown.
func (s *Store) Get(actionID string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[actionID]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return e, nil
}

// Keys returns the sorted action IDs currently in the store.
// Sorting keeps reconciliation diffs deterministic for a given input.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entities))
	for k := range s.entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshots returns point-in-time views of all entities, ordered by action ID.
func (s *Store) Snapshots() []Snapshot {
	s.mu.RLock()
	entities := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, e)
	}
	s.mu.RUnlock()

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ActionID < entities[j].ActionID
	})

	snapshots := make([]Snapshot, 0, len(entities))
	for _, e := range entities {
		snapshots = append(snapshots, e.Snapshot())
	}
	return snapshots
}

// Len returns the number of entities in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}
