package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/drinkshelf/internal/client/models"
	"github.com/dmitrijs2005/drinkshelf/internal/client/session"
	"github.com/dmitrijs2005/drinkshelf/internal/logging"
)

type fakeStore struct {
	mu    sync.Mutex
	state session.State

	loginUser *models.User
	loginErr  error
	loginArgs []string
	logins    int

	regUser *models.User
	regErr  error
	regArgs []string

	logouts int
	inits   int
	restore *models.User

	subs chan session.State
}

func (f *fakeStore) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeStore) set(st session.State) {
	f.mu.Lock()
	f.state = st
	subs := f.subs
	f.mu.Unlock()
	if subs != nil {
		subs <- st
	}
}

func (f *fakeStore) Subscribe() (<-chan session.State, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(chan session.State, 16)
	}
	return f.subs, func() {}
}

func (f *fakeStore) InitializeAuth(context.Context) session.State {
	f.mu.Lock()
	f.inits++
	f.mu.Unlock()
	if f.restore != nil {
		f.set(session.State{User: f.restore})
	}
	return f.State()
}

func (f *fakeStore) Login(_ context.Context, identifier, password string) (*models.User, error) {
	f.logins++
	f.loginArgs = []string{identifier, password}
	if f.loginErr != nil {
		f.set(session.State{User: f.State().User, Error: session.Describe(f.loginErr)})
		return nil, f.loginErr
	}
	f.set(session.State{User: f.loginUser})
	return f.loginUser, nil
}

func (f *fakeStore) Register(_ context.Context, username, email, password string) (*models.User, error) {
	f.regArgs = []string{username, email, password}
	if f.regErr != nil {
		f.set(session.State{Error: session.Describe(f.regErr)})
		return nil, f.regErr
	}
	f.set(session.State{User: f.regUser})
	return f.regUser, nil
}

func (f *fakeStore) Logout(context.Context) {
	f.logouts++
	f.set(session.State{})
}

type fakeProfiles struct {
	update models.ProfileUpdate
	calls  int
	user   *models.User
	err    error
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, update models.ProfileUpdate) (*models.User, error) {
	f.calls++
	f.update = update
	return f.user, f.err
}

type fakePinger struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakePinger) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakePinger) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// syncBuffer is a bytes.Buffer safe for the watcher goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newBufferLogger(w io.Writer) logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func newTestApp(store *fakeStore, input string) (*App, *syncBuffer) {
	out := &syncBuffer{}
	return &App{
		store:    store,
		profiles: &fakeProfiles{},
		api:      &fakePinger{},
		logger:   logging.NewNopLogger(),
		reader:   bufio.NewReader(bytes.NewBufferString(input)),
		out:      out,
	}, out
}

// stubInputs makes getSimpleText and getPassword return the given answers
// in order.
func stubInputs(t *testing.T, texts []string, passwords []string) {
	t.Helper()
	origST, origGP, origML := getSimpleText, getPassword, getMultiline

	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if len(texts) == 0 {
			return "", io.EOF
		}
		v := texts[0]
		texts = texts[1:]
		return v, nil
	}
	getMultiline = getSimpleText
	getPassword = func(_ io.Writer, _ string) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, io.EOF
		}
		v := passwords[0]
		passwords = passwords[1:]
		return []byte(v), nil
	}

	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
		getMultiline = origML
	})
}

type fakeCredInfo struct {
	savedAt time.Time
	err     error
}

func (f fakeCredInfo) SavedAt(context.Context) (time.Time, error) { return f.savedAt, f.err }
