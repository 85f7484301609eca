package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/core/domain"
)

var errNoSuchUser = errors.New("no such user")

// fakeUserStore is an in-memory UserStore with the same locked
// read-modify-write contract as the real repository.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) FindOrCreate(_ context.Context, phone string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if user, ok := f.users[phone]; ok {
		copied := *user
		return &copied, nil
	}
	user := &models.User{
		PhoneNumber: phone,
		Session:     domain.SessionState{Step: domain.StepAwaitingPinSetup},
	}
	f.users[phone] = user
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) Update(_ context.Context, phone string, fn func(*models.User) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[phone]
	if !ok {
		return errNoSuchUser
	}
	copied := *user
	if err := fn(&copied); err != nil {
		return err
	}
	f.users[phone] = &copied
	return nil
}

// get returns the stored user for assertions.
func (f *fakeUserStore) get(phone string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[phone]
	if user == nil {
		return nil
	}
	copied := *user
	return &copied
}

// allowAllLimiter never throttles.
type allowAllLimiter struct{}

func (allowAllLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}
