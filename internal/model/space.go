package model

import (
	"sync"

	"github.com/google/uuid"

	"github.com/driftdb/driftdb/internal/errs"
)

// Space is a namespace of models, roughly a database. A space owns no
// storage itself; its models each own their own journal.
type Space struct {
	id   uuid.UUID
	name string

	mu     sync.RWMutex
	models map[string]*Model
}

// NewSpace constructs an empty, named space.
func NewSpace(id uuid.UUID, name string) *Space {
	return &Space{id: id, name: name, models: make(map[string]*Model)}
}

func (s *Space) ID() uuid.UUID { return s.id }
func (s *Space) Name() string  { return s.name }

// AddModel registers m under its own name. Fails if a model with that
// name already exists in the space.
func (s *Space) AddModel(m *Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.models[m.Name()]; dup {
		return errs.New(errs.RestoreDataConflictAlreadyExists, "model already exists: "+m.Name())
	}
	s.models[m.Name()] = m
	return nil
}

// RemoveModel drops a model by name.
func (s *Space) RemoveModel(name string) (*Model, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[name]
	if ok {
		delete(s.models, name)
	}
	return m, ok
}

// Model looks up a model by name.
func (s *Space) Model(name string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[name]
	return m, ok
}

// Models returns a snapshot of all models currently in the space.
func (s *Space) Models() []*Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Model, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}
	return out
}
