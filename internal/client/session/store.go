// Package session holds the process-wide authentication state of the client:
// who is logged in, whether an auth request is outstanding and the last
// failure. It is the only writer of the persisted credential.
//
// Concurrent Login and Register calls follow last-response-wins. Logout
// invalidates every response still in flight. InitializeAuth collapses
// concurrent callers into one current-user fetch and its result is dropped
// if anything else changed the session while that fetch was running.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/drinkshelf/internal/client/client"
	"github.com/dmitrijs2005/drinkshelf/internal/client/metrics"
	"github.com/dmitrijs2005/drinkshelf/internal/client/models"
	"github.com/dmitrijs2005/drinkshelf/internal/logging"
	"golang.org/x/sync/singleflight"
)

const restoreKey = "restore"

// AuthClient is the part of the remote API the store depends on.
type AuthClient interface {
	ExchangeCredentials(ctx context.Context, identifier, password string) (*models.AuthResult, error)
	CreateAccount(ctx context.Context, username, email, password string) (*models.AuthResult, error)
	FetchCurrentUser(ctx context.Context, token string) (*models.User, error)
}

// CredentialStore persists the access token. Load returns "" when absent.
type CredentialStore interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

type Option func(*Store)

func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.metrics = r
		}
	}
}

// attempt is what a Login or Register saw when it was issued.
type attempt struct {
	epoch   uint64
	authSeq uint64
	user    *models.User
	token   string
}

type Store struct {
	api     AuthClient
	creds   CredentialStore
	logger  logging.Logger
	metrics metrics.Recorder

	restoreGroup singleflight.Group

	mu    sync.Mutex
	state State
	// token mirrors the persisted credential while the store owns it.
	token string
	// epoch advances on every logout; responses from an older epoch are dropped.
	epoch uint64
	// version advances on every applied change of user or error.
	version uint64
	// authSeq advances whenever a login or register resolution sets the user.
	authSeq uint64
	pending int

	subs    map[int]chan State
	nextSub int
}

func NewStore(api AuthClient, creds CredentialStore, opts ...Option) *Store {
	s := &Store{
		api:     api,
		creds:   creds,
		logger:  logging.NewNopLogger(),
		metrics: metrics.Nop{},
		subs:    make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe returns a channel that always holds the latest snapshot, starting
// with the current one. Snapshots not yet received are replaced by newer ones.
// The returned function unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state.clone()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

func (s *Store) publishLocked() {
	snap := s.state.clone()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// InitializeAuth reconciles the store with the persisted credential. It is
// safe to call any number of times and from many goroutines at once; at most
// one current-user fetch is in flight. It never fails: any problem leaves
// the session logged out. A canceled ctx only stops the wait of this caller.
func (s *Store) InitializeAuth(ctx context.Context) State {
	s.mu.Lock()
	if s.state.User != nil {
		snap := s.state.clone()
		s.mu.Unlock()
		return snap
	}
	s.mu.Unlock()

	shared := context.WithoutCancel(ctx)
	ch := s.restoreGroup.DoChan(restoreKey, func() (any, error) {
		s.restore(shared)
		return nil, nil
	})

	select {
	case <-ch:
	case <-ctx.Done():
	}
	return s.State()
}

func (s *Store) restore(ctx context.Context) {
	// The credential is only trusted if nothing touched the session between
	// this snapshot and the read below.
	s.mu.Lock()
	if s.state.User != nil {
		s.mu.Unlock()
		return
	}
	epoch, version := s.epoch, s.version
	s.mu.Unlock()

	token, err := s.creds.Load(ctx)
	if err != nil {
		s.logger.Warn(ctx, "read stored credential", "error", err)
		return
	}
	if token == "" {
		s.logger.Debug(ctx, "no stored credential")
		return
	}

	s.mu.Lock()
	if epoch != s.epoch || version != s.version || s.state.User != nil {
		s.mu.Unlock()
		s.metrics.AuthAttempt(metrics.OpRestore, metrics.OutcomeDiscarded)
		s.logger.Debug(ctx, "restore skipped, session changed while reading the credential")
		return
	}
	s.pending++
	s.state.IsLoading = true
	s.publishLocked()
	s.mu.Unlock()

	s.metrics.RestoreFetch()
	user, err := s.api.FetchCurrentUser(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.metrics.AuthAttempt(metrics.OpRestore, metrics.OutcomeDiscarded)
		s.logger.Debug(ctx, "restore dropped after logout")
		return
	}
	s.pending--
	s.state.IsLoading = s.pending > 0

	if version != s.version {
		s.metrics.AuthAttempt(metrics.OpRestore, metrics.OutcomeDiscarded)
		s.logger.Debug(ctx, "restore dropped, session changed meanwhile")
		s.publishLocked()
		return
	}
	s.version++

	if err == nil && (user == nil || user.ID == "") {
		err = fmt.Errorf("%w: current user without id", client.ErrMalformedResponse)
	}

	if err != nil {
		s.metrics.AuthAttempt(metrics.OpRestore, metrics.OutcomeFailure)
		if cerr := s.creds.Clear(ctx); cerr != nil {
			s.logger.Warn(ctx, "clear rejected credential", "error", cerr)
		}
		s.token = ""
		s.state.User = nil
		s.state.Error = errorMessage(err)
		if client.IsCredentialFailure(err) {
			s.logger.Info(ctx, "stored credential rejected by the server", "error", err)
		} else {
			s.logger.Warn(ctx, "stored session could not be restored", "error", err)
		}
		s.publishLocked()
		return
	}

	s.metrics.AuthAttempt(metrics.OpRestore, metrics.OutcomeSuccess)
	s.token = token
	s.state.User = user.Clone()
	s.state.Error = ""
	s.logger.Info(ctx, "session restored", "user_id", user.ID)
	s.publishLocked()
}

// Login exchanges identifier (username or email) and password for a session.
// On failure the error is both recorded in State and returned.
func (s *Store) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	return s.authenticate(ctx, metrics.OpLogin, func(ctx context.Context) (*models.AuthResult, error) {
		return s.api.ExchangeCredentials(ctx, identifier, password)
	})
}

// Register creates an account and logs into it. Blank fields are rejected
// with client.ErrInvalidInput before any request is made.
func (s *Store) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		s.mu.Lock()
		s.state.Error = MsgInvalidInput
		s.publishLocked()
		s.mu.Unlock()

		s.metrics.AuthAttempt(metrics.OpRegister, metrics.OutcomeFailure)
		return nil, fmt.Errorf("%w: username, email and password are required", client.ErrInvalidInput)
	}

	return s.authenticate(ctx, metrics.OpRegister, func(ctx context.Context) (*models.AuthResult, error) {
		return s.api.CreateAccount(ctx, username, email, password)
	})
}

func (s *Store) begin() attempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending++
	s.state.IsLoading = true
	s.state.Error = ""
	s.publishLocked()

	return attempt{
		epoch:   s.epoch,
		authSeq: s.authSeq,
		user:    s.state.User.Clone(),
		token:   s.token,
	}
}

func (s *Store) authenticate(ctx context.Context, op string, call func(context.Context) (*models.AuthResult, error)) (*models.User, error) {
	a := s.begin()
	s.metrics.InFlight(1)

	res, err := call(ctx)

	s.metrics.InFlight(-1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if a.epoch != s.epoch {
		s.metrics.AuthAttempt(op, metrics.OutcomeDiscarded)
		s.logger.Debug(ctx, "auth response dropped after logout", "op", op)
		return nil, ErrSessionEnded
	}

	s.pending--
	s.state.IsLoading = s.pending > 0
	s.version++

	if err == nil && (res == nil || res.User == nil || res.User.ID == "" || res.Token == "") {
		err = fmt.Errorf("%w: answer without user or token", client.ErrMalformedResponse)
	}

	// The answer is in hand; persisting it must not depend on the caller
	// still waiting.
	persistCtx := context.WithoutCancel(ctx)

	if err == nil {
		if perr := s.creds.Save(persistCtx, res.Token); perr != nil {
			err = fmt.Errorf("%w: %w", errPersist, perr)
		}
	}

	if err != nil {
		s.metrics.AuthAttempt(op, metrics.OutcomeFailure)
		s.state.Error = errorMessage(err)
		if s.authSeq != a.authSeq {
			s.rollbackLocked(persistCtx, a)
		}
		s.logger.Info(ctx, "auth failed", "op", op, "error", err)
		s.publishLocked()
		return nil, err
	}

	s.metrics.AuthAttempt(op, metrics.OutcomeSuccess)
	s.authSeq++
	s.token = res.Token
	s.state.User = res.User.Clone()
	s.state.Error = ""
	s.logger.Info(ctx, "authenticated", "op", op, "user_id", res.User.ID)
	s.publishLocked()

	return res.User.Clone(), nil
}

// rollbackLocked puts back the session a failed attempt started from,
// undoing a sibling attempt that succeeded while this one was in flight.
func (s *Store) rollbackLocked(ctx context.Context, a attempt) {
	var err error
	if a.token == "" {
		err = s.creds.Clear(ctx)
	} else {
		err = s.creds.Save(ctx, a.token)
	}
	if err != nil {
		s.logger.Warn(ctx, "restore previous credential", "error", err)
	}

	s.authSeq++
	s.token = a.token
	s.state.User = a.user.Clone()
}

// Logout clears the credential and the session. It never fails; storage
// errors are logged. Responses still in flight are discarded.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.pending = 0
	s.token = ""
	// A restore still running under the forgotten key holds the old epoch
	// and gives up when it next takes the lock.
	s.restoreGroup.Forget(restoreKey)

	if err := s.creds.Clear(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn(ctx, "clear credential on logout", "error", err)
	}

	if s.state == (State{}) {
		return
	}

	if s.state.User != nil {
		s.logger.Info(ctx, "logged out", "user_id", s.state.User.ID)
	}
	s.version++
	s.state = State{}
	s.publishLocked()
}

// SetUser replaces the current user unconditionally. Loading state, error
// and credential are left alone. Answers to requests that may race a logout
// go through ReplaceUser instead.
func (s *Store) SetUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	s.state.User = u.Clone()
	s.publishLocked()
}

// ReplaceUser swaps in a fresh record of the logged-in user, such as the
// answer of a profile update. It does nothing and returns false when nobody
// is logged in or u is someone else, so an answer arriving after a logout
// cannot bring the session back.
func (s *Store) ReplaceUser(u *models.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u == nil || s.state.User == nil || s.state.User.ID != u.ID {
		return false
	}

	s.version++
	s.state.User = u.Clone()
	s.publishLocked()
	return true
}
