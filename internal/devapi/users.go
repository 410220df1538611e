package devapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/drinkshelf/internal/common"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken = fmt.Errorf("username: %w", common.ErrorAlreadyExists)
	ErrEmailTaken    = fmt.Errorf("email: %w", common.ErrorAlreadyExists)
	ErrBadPassword   = errors.New("incorrect username or password")
)

// User is a registered account. PasswordHash never leaves the package.
type User struct {
	ID           string
	Username     string
	Email        string
	DisplayName  *string
	Bio          *string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Users is an in-memory account registry safe for concurrent use.
type Users struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byName  map[string]string
	byEmail map[string]string
	cost    int
	now     func() time.Time
}

func NewUsers() *Users {
	return &Users{
		byID:    make(map[string]*User),
		byName:  make(map[string]string),
		byEmail: make(map[string]string),
		cost:    bcrypt.DefaultCost,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a user, hashing password with bcrypt.
func (r *Users) Create(ctx context.Context, username, email, password string, displayName, bio *string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[username]; ok {
		return nil, ErrUsernameTaken
	}
	if _, ok := r.byEmail[emailKey(email)]; ok {
		return nil, ErrEmailTaken
	}

	now := r.now()
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		Bio:          bio,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	r.byName[u.Username] = u.ID
	r.byEmail[emailKey(u.Email)] = u.ID

	return u.copy(), nil
}

// Authenticate finds the user by username or email and checks password.
func (r *Users) Authenticate(ctx context.Context, identifier, password string) (*User, error) {
	r.mu.RLock()
	id, ok := r.byName[identifier]
	if !ok {
		id, ok = r.byEmail[emailKey(identifier)]
	}
	var u *User
	if ok {
		u = r.byID[id].copy()
	}
	r.mu.RUnlock()

	if u == nil {
		return nil, ErrBadPassword
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrBadPassword
	}
	return u, nil
}

func (r *Users) Get(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.copy(), nil
}

// Update sets the non-nil fields of the profile.
func (r *Users) Update(ctx context.Context, id string, displayName, bio *string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if displayName != nil {
		v := *displayName
		u.DisplayName = &v
	}
	if bio != nil {
		v := *bio
		u.Bio = &v
	}
	u.UpdatedAt = r.now()

	return u.copy(), nil
}

func (u *User) copy() *User {
	c := *u
	if u.DisplayName != nil {
		v := *u.DisplayName
		c.DisplayName = &v
	}
	if u.Bio != nil {
		v := *u.Bio
		c.Bio = &v
	}
	return &c
}
