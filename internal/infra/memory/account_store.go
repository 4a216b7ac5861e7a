package memory

import (
	"context"
	"sort"
	"sync"

	"gamification-service/internal/domain"
)

// AccountStore keeps points accounts in a map. Accounts are cloned on the way in and out so
// callers never share slices with the store.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.PointsAccount
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]domain.PointsAccount)}
}

func (s *AccountStore) Get(_ context.Context, userID string) (domain.PointsAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[userID]
	if !ok {
		return domain.PointsAccount{}, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *AccountStore) Save(_ context.Context, account domain.PointsAccount, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[account.UserID]
	switch {
	case !ok && expectedVersion != 0:
		return domain.ErrVersionConflict
	case ok && current.Version != expectedVersion:
		return domain.ErrVersionConflict
	}
	s.accounts[account.UserID] = account.Clone()
	return nil
}

// List returns every account ordered by user id.
func (s *AccountStore) List(_ context.Context) ([]domain.PointsAccount, error) {
	s.mu.RLock()
	out := make([]domain.PointsAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
