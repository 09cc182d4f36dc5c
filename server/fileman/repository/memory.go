package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"filevault/server/fileman/domain"
	"filevault/server/fileman/query"
)

// MemoryFileStore keeps records in process. It evaluates plans with
// query.Plan.Apply, so it answers queries the same way the SQL rendering does.
type MemoryFileStore struct {
	mu    sync.RWMutex
	files map[string]domain.FileRecord
	users *MemoryUserStore
	now   func() time.Time
}

func NewMemoryFileStore(users *MemoryUserStore) *MemoryFileStore {
	return &MemoryFileStore{
		files: map[string]domain.FileRecord{},
		users: users,
		now:   time.Now,
	}
}

// WithClock replaces the timestamp source; tests use it for stable ordering.
func (s *MemoryFileStore) WithClock(now func() time.Time) *MemoryFileStore {
	s.now = now
	return s
}

func (s *MemoryFileStore) Create(_ context.Context, item domain.FileRecord) (domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = uuid.NewString()
	item.SharedWith = cloneStrings(item.SharedWith)
	now := s.now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.files[item.ID] = item
	return s.expand(item), nil
}

func (s *MemoryFileStore) Get(_ context.Context, id string) (domain.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.files[id]
	if !ok {
		return domain.FileRecord{}, domain.ErrNotFound
	}
	return s.expand(item), nil
}

func (s *MemoryFileStore) Update(_ context.Context, id string, patch domain.FilePatch) (domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.files[id]
	if !ok {
		return domain.FileRecord{}, domain.ErrNotFound
	}
	if patch.Name == nil && patch.SharedWith == nil {
		return s.expand(item), nil
	}
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.SharedWith != nil {
		item.SharedWith = cloneStrings(*patch.SharedWith)
	}
	item.UpdatedAt = s.now().UTC()
	s.files[id] = item
	return s.expand(item), nil
}

func (s *MemoryFileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func (s *MemoryFileStore) Query(_ context.Context, plan query.Plan) ([]domain.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := plan.Apply(s.snapshot())
	for i := range matched {
		matched[i] = s.expand(matched[i])
	}
	return matched, nil
}

func (s *MemoryFileStore) ListByOwner(_ context.Context, ownerID string) ([]domain.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FileRecord, 0)
	for _, item := range s.snapshot() {
		if item.OwnerID == ownerID {
			out = append(out, s.expand(item))
		}
	}
	return out, nil
}

// Len reports how many records are stored.
func (s *MemoryFileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func (s *MemoryFileStore) snapshot() []domain.FileRecord {
	out := make([]domain.FileRecord, 0, len(s.files))
	for _, item := range s.files {
		item.SharedWith = cloneStrings(item.SharedWith)
		out = append(out, item)
	}
	return out
}

func (s *MemoryFileStore) expand(item domain.FileRecord) domain.FileRecord {
	item.SharedWith = cloneStrings(item.SharedWith)
	if s.users != nil {
		if owner, ok := s.users.byID(item.OwnerID); ok {
			item.Owner = &owner
		}
	}
	return item
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: map[string]domain.User{}}
}

func (s *MemoryUserStore) CreateIfAbsent(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if existing, ok := s.users[key]; ok {
		return existing, nil
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	s.users[key] = user
	return user, nil
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[strings.ToLower(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *MemoryUserStore) byID(id string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return domain.User{}, false
}
