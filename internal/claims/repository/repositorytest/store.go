// Package repositorytest provides an in-memory repository.Store for tests.
package repositorytest

import (
	"context"
	"sync"
	"time"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/internal/claims/repository"

	"github.com/google/uuid"
)

// Store keeps rows in maps and enforces the same version check as the
// Postgres store. Set FetchErr or WriteErr to simulate outages.
type Store struct {
	mu         sync.Mutex
	order      []uuid.UUID
	claims     map[uuid.UUID]repository.ClaimRow
	steps      map[uuid.UUID][]repository.StepRow
	documents  map[uuid.UUID][]repository.DocumentRow
	events     map[uuid.UUID][]repository.EventRow
	expertises map[uuid.UUID]repository.ExpertiseRow
	profiles   map[uuid.UUID]repository.ProfileRow
	sequences  map[int]int64

	FetchErr error
	WriteErr error
	Fetches  int
	Writes   int
}

func New() *Store {
	return &Store{
		claims:     map[uuid.UUID]repository.ClaimRow{},
		steps:      map[uuid.UUID][]repository.StepRow{},
		documents:  map[uuid.UUID][]repository.DocumentRow{},
		events:     map[uuid.UUID][]repository.EventRow{},
		expertises: map[uuid.UUID]repository.ExpertiseRow{},
		profiles:   map[uuid.UUID]repository.ProfileRow{},
		sequences:  map[int]int64{},
	}
}

// AddUser registers a profile with the given roles and returns its domain view.
func (s *Store) AddUser(name string, roles ...string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	s.profiles[id] = repository.ProfileRow{ID: id, Email: name + "@assur.test", Name: name, Roles: roles, CreatedAt: created}
	role := "assure"
	if len(roles) > 0 {
		role = roles[0]
	}
	return domain.User{ID: id, Email: name + "@assur.test", Name: name, Role: role, CreatedAt: created}
}

// SetFetchErr and SetWriteErr change the injected failures under the lock.
func (s *Store) SetFetchErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FetchErr = err
}

func (s *Store) SetWriteErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WriteErr = err
}

// BumpVersion simulates a write from another process.
func (s *Store) BumpVersion(claimNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.claims {
		if row.ClaimNumber == claimNumber {
			row.Version++
			s.claims[id] = row
		}
	}
}

// EventCount returns the stored events of a claim.
func (s *Store) EventCount(claimNumber string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.claims {
		if row.ClaimNumber == claimNumber {
			return len(s.events[id])
		}
	}
	return 0
}

func (s *Store) FetchAll(ctx context.Context) (repository.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return repository.Dataset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fetches++
	if s.FetchErr != nil {
		return repository.Dataset{}, s.FetchErr
	}

	var ds repository.Dataset
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		ds.Claims = append(ds.Claims, s.claims[id])
		ds.Steps = append(ds.Steps, s.steps[id]...)
		ds.Documents = append(ds.Documents, s.documents[id]...)
		events := s.events[id]
		for j := len(events) - 1; j >= 0; j-- {
			ds.Events = append(ds.Events, events[j])
		}
		if x, ok := s.expertises[id]; ok {
			ds.Expertises = append(ds.Expertises, x)
		}
	}
	for _, p := range s.profiles {
		ds.Profiles = append(ds.Profiles, p)
	}
	return ds, nil
}

func (s *Store) NextSequence(_ context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return 0, s.WriteErr
	}
	s.sequences[year]++
	return s.sequences[year], nil
}

func (s *Store) Insert(_ context.Context, m repository.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.Writes++
	id := m.Claim.ID
	s.order = append(s.order, id)
	s.claims[id] = m.Claim
	s.steps[id] = append([]repository.StepRow(nil), m.Steps...)
	s.applyChildren(id, m)
	return nil
}

func (s *Store) Apply(_ context.Context, m repository.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	id := m.Claim.ID
	stored, ok := s.claims[id]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != m.ExpectedVersion {
		return repository.ErrVersionConflict
	}
	s.Writes++
	s.claims[id] = m.Claim
	s.steps[id] = append([]repository.StepRow(nil), m.Steps...)
	s.applyChildren(id, m)
	return nil
}

func (s *Store) applyChildren(id uuid.UUID, m repository.Mutation) {
	if m.Expertise != nil {
		x := *m.Expertise
		if prev, ok := s.expertises[id]; ok {
			x.ID = prev.ID
			x.CreatedAt = prev.CreatedAt
		}
		s.expertises[id] = x
	}
	if m.Document != nil {
		s.documents[id] = append(s.documents[id], *m.Document)
	}
	if m.Event != nil {
		s.events[id] = append(s.events[id], *m.Event)
	}
}

var _ repository.Store = (*Store)(nil)
