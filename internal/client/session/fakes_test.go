package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/drinkshelf/internal/client/models"
)

type fakeClient struct {
	login   func(ctx context.Context, identifier, password string) (*models.AuthResult, error)
	create  func(ctx context.Context, username, email, password string) (*models.AuthResult, error)
	current func(ctx context.Context, token string) (*models.User, error)

	logins  atomic.Int32
	creates atomic.Int32
	fetches atomic.Int32
}

func (f *fakeClient) ExchangeCredentials(ctx context.Context, identifier, password string) (*models.AuthResult, error) {
	f.logins.Add(1)
	return f.login(ctx, identifier, password)
}

func (f *fakeClient) CreateAccount(ctx context.Context, username, email, password string) (*models.AuthResult, error) {
	f.creates.Add(1)
	return f.create(ctx, username, email, password)
}

func (f *fakeClient) FetchCurrentUser(ctx context.Context, token string) (*models.User, error) {
	f.fetches.Add(1)
	return f.current(ctx, token)
}

type fakeCreds struct {
	mu       sync.Mutex
	token    string
	saves    int
	clears   int
	saveErr  error
	clearErr error
	loadErr  error

	// afterLoad runs once the token has been read, outside the lock.
	afterLoad func()
}

func (f *fakeCreds) Save(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.token = token
	return nil
}

func (f *fakeCreds) Load(context.Context) (string, error) {
	f.mu.Lock()
	token, err, hook := f.token, f.loadErr, f.afterLoad
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return token, err
}

func (f *fakeCreds) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.token = ""
	return nil
}

func (f *fakeCreds) stored() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func user(id, username string) *models.User {
	return &models.User{ID: id, Username: username, Email: username + "@example.com"}
}

func authResult(id, username, token string) *models.AuthResult {
	return &models.AuthResult{User: user(id, username), Token: token}
}

type reply struct {
	auth *models.AuthResult
	user *models.User
	err  error
}

type outcome struct {
	user *models.User
	err  error
}

// gate lets a test decide when, and with what, each blocked call returns.
type gate struct {
	started chan string
	mu      sync.Mutex
	replies map[string]chan reply
}

func newGate() *gate {
	return &gate{started: make(chan string, 16), replies: make(map[string]chan reply)}
}

func (g *gate) ch(key string) chan reply {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.replies[key]
	if !ok {
		c = make(chan reply, 1)
		g.replies[key] = c
	}
	return c
}

func (g *gate) wait(ctx context.Context, key string) reply {
	g.started <- key
	select {
	case r := <-g.ch(key):
		return r
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	}
}

func (g *gate) release(key string, r reply) {
	g.ch(key) <- r
}

func (g *gate) awaitStarted(t *testing.T, n int) []string {
	t.Helper()
	var keys []string
	for i := 0; i < n; i++ {
		select {
		case k := <-g.started:
			keys = append(keys, k)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d calls started", i, n)
		}
	}
	return keys
}

func awaitOutcome(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("operation did not finish")
	}
	return outcome{}
}

func loginAsync(s *Store, identifier string) <-chan outcome {
	ch := make(chan outcome, 1)
	go func() {
		u, err := s.Login(context.Background(), identifier, "password")
		ch <- outcome{user: u, err: err}
	}()
	return ch
}
