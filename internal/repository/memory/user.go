// Package memory implements the repository interfaces with process-resident
// data structures. Nothing here survives a restart.
//
// LOCKING MODEL:
// One sync.RWMutex guards the whole store. Every mutation takes the write
// lock for its entire check-then-act sequence, so the email uniqueness check
// and the id assignment of a Create are a single atomic unit. Reads take the
// read lock and never block each other.
//
// The three structures below must always agree:
//
//	byID    id    → record
//	byEmail email → id          (secondary index)
//	order   []id in insertion order (List is stable)
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/sakif/userdesk/internal/apperror"
	"github.com/sakif/userdesk/internal/model"
	"github.com/sakif/userdesk/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the in-memory User Store.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[int64]*model.User
	byEmail map[string]int64
	order   []int64
	nextID  int64
}

// NewUserStore creates a store holding the given seed records.
// Seeds keep their ids; the identity counter starts above the largest one.
// A seed with a duplicate email or id is skipped.
func NewUserStore(seed ...model.User) *UserStore {
	s := &UserStore{
		byID:    make(map[int64]*model.User),
		byEmail: make(map[string]int64),
		nextID:  1,
	}

	for _, u := range seed {
		if _, taken := s.byID[u.ID]; taken || u.ID <= 0 {
			continue
		}
		if _, taken := s.byEmail[u.Email]; taken {
			continue
		}
		s.insertLocked(u)
		if u.ID >= s.nextID {
			s.nextID = u.ID + 1
		}
	}

	return s
}

// Create stores a new user and assigns its ID.
// Returns a ValidationError if the email is already taken.
func (s *UserStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return apperror.ValidationFailed("email", "Email already exists")
	}

	user.ID = s.nextID
	s.nextID++
	s.insertLocked(*user)

	return nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("User not found")
	}
	u := *s.byID[id]
	return &u, nil
}

func (s *UserStore) FindByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, apperror.NotFound("User not found")
	}
	out := *u
	return &out, nil
}

// Update applies the patch under the write lock.
//
// Check order follows the HTTP contract: a missing id is reported before an
// empty patch, and an email collision only counts against a DIFFERENT record
// (re-submitting your own email is not a conflict).
func (s *UserStore) Update(_ context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, apperror.NotFound("User not found")
	}
	if patch.IsEmpty() {
		return nil, apperror.ValidationFailed("", "At least one field (name or email) is required")
	}

	if patch.Email != nil && *patch.Email != u.Email {
		if other, taken := s.byEmail[*patch.Email]; taken && other != id {
			return nil, apperror.ValidationFailed("email", "Email already exists")
		}
		delete(s.byEmail, u.Email)
		u.Email = *patch.Email
		s.byEmail[u.Email] = id
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}

	out := *u
	return &out, nil
}

// Delete removes the user and returns the removed record.
// The id is never handed out again: nextID only moves forward.
func (s *UserStore) Delete(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, apperror.NotFound("User not found")
	}

	delete(s.byID, id)
	delete(s.byEmail, u.Email)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}

	return u, nil
}

// List returns a consistent snapshot of all users in insertion order.
func (s *UserStore) List(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, *s.byID[id])
	}
	return users, nil
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// insertLocked writes all three indexes. Caller holds the write lock
// (or owns s exclusively, as in NewUserStore).
func (s *UserStore) insertLocked(u model.User) {
	stored := u
	s.byID[u.ID] = &stored
	s.byEmail[u.Email] = u.ID
	s.order = append(s.order, u.ID)
}
