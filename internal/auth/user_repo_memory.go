package auth

import (
	"strings"
	"sync"
	"time"
)

// MemoryUserRepo is a threadsafe in-memory storage useful for tests and
// single-instance dev servers. NOT suitable for production without
// persistence. It also handles incremental ID assignment starting from 1.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	users  map[string]*User // key = lowercase(username)
	byID   map[uint64]*User
	nextID uint64
}

// NewMemoryUserRepo returns a repository pre-populated with two accounts:
// test/test (regular) and admin/admin (administrator).
func NewMemoryUserRepo() (*MemoryUserRepo, error) {
	repo := &MemoryUserRepo{
		users:  make(map[string]*User),
		byID:   make(map[uint64]*User),
		nextID: 1,
	}

	passwordHash, err := HashPassword("test")
	if err != nil {
		return nil, err
	}
	if _, err := repo.CreateUser("test", passwordHash, false); err != nil {
		return nil, err
	}

	adminHash, err := HashPassword("admin")
	if err != nil {
		return nil, err
	}
	if _, err := repo.CreateUser("admin", adminHash, true); err != nil {
		return nil, err
	}

	return repo, nil
}

// GetUserByUsername retrieves a user by case-insensitive username.
func (r *MemoryUserRepo) GetUserByUsername(username string) (*User, error) {
	key := normalize(username)
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[key]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetUserByID retrieves a user by numeric ID.
func (r *MemoryUserRepo) GetUserByID(id uint64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// CreateUser inserts a new user if the username is not present.
func (r *MemoryUserRepo) CreateUser(username string, passwordHash string, isAdmin bool) (*User, error) {
	key := normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[key]; exists {
		return nil, ErrUserExists
	}

	user := &User{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		LastLogin:    time.Now(),
		IsAdmin:      isAdmin,
	}
	r.nextID++
	r.users[key] = user
	r.byID[user.ID] = user
	return user, nil
}

// ValidateCredentials checks the password against the stored bcrypt hash
// and updates LastLogin on success.
func (r *MemoryUserRepo) ValidateCredentials(username, password string) (*User, error) {
	key := normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[key]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	user.LastLogin = time.Now()
	return user, nil
}

// Helper to normalise usernames.
func normalize(username string) string {
	return strings.ToLower(username)
}
