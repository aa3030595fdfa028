package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duetapp/duet/internal/couple"
	"github.com/duetapp/duet/internal/user"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserStore is an in-memory UserStore with controllable failure modes.
type fakeUserStore struct {
	users        map[string]*user.User // by id
	byEmail      map[string]*user.User
	sessions     map[string]string // token -> user id
	lookupDelay  time.Duration
	lookupErr    error
	deleted      []string
	deleteDelay  time.Duration
	nextToken    string
	createSessEr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:     make(map[string]*user.User),
		byEmail:   make(map[string]*user.User),
		sessions:  make(map[string]string),
		nextToken: "token-1",
	}
}

func (f *fakeUserStore) addUser(id, email, password string) *user.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	u := &user.User{ID: id, Email: email, Name: id, PasswordHash: string(hash)}
	f.users[id] = u
	f.byEmail[email] = u
	return u
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errors.New("no rows")
	}
	return u, nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return u, nil
}

func (f *fakeUserStore) CreateSession(ctx context.Context, userID string) (string, *user.Session, error) {
	if f.createSessEr != nil {
		return "", nil, f.createSessEr
	}
	f.sessions[f.nextToken] = userID
	return f.nextToken, &user.Session{UserID: userID}, nil
}

func (f *fakeUserStore) GetSessionUser(ctx context.Context, token string) (*user.User, error) {
	if f.lookupDelay > 0 {
		select {
		case <-time.After(f.lookupDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	id, ok := f.sessions[token]
	if !ok {
		return nil, errors.New("no rows")
	}
	return f.users[id], nil
}

func (f *fakeUserStore) DeleteSession(ctx context.Context, token string) error {
	if f.deleteDelay > 0 {
		time.Sleep(f.deleteDelay)
	}
	f.deleted = append(f.deleted, token)
	delete(f.sessions, token)
	return nil
}

// fakeCoupleStore serves a single couple record for configured users.
type fakeCoupleStore struct {
	couple *couple.Couple
	err    error
	calls  int
}

func (f *fakeCoupleStore) GetByUser(ctx context.Context, userID string) (*couple.Couple, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.couple == nil {
		return nil, nil
	}
	if f.couple.UserA == userID || (f.couple.UserB != nil && *f.couple.UserB == userID) {
		return f.couple, nil
	}
	return nil, nil
}

func TestResolveEmptyToken(t *testing.T) {
	svc := NewService(newFakeUserStore(), &fakeCoupleStore{}, time.Second)
	sess := svc.Resolve(context.Background(), "")
	if sess.Authenticated() {
		t.Fatal("empty token should resolve to an unauthenticated session")
	}
}

func TestResolvePopulatesCoupleAndPartner(t *testing.T) {
	us := newFakeUserStore()
	us.addUser("alice", "alice@example.com", "pw")
	us.addUser("bob", "bob@example.com", "pw")
	us.sessions["tok"] = "alice"

	b := "bob"
	cs := &fakeCoupleStore{couple: &couple.Couple{ID: "c1", UserA: "alice", UserB: &b, Status: couple.StatusActive}}
	svc := NewService(us, cs, time.Second)

	sess := svc.Resolve(context.Background(), "tok")
	if !sess.Authenticated() {
		t.Fatal("expected authenticated session")
	}
	if sess.Couple == nil || sess.Couple.ID != "c1" {
		t.Fatalf("expected couple c1, got %+v", sess.Couple)
	}
	if sess.Partner == nil || sess.Partner.ID != "bob" {
		t.Fatalf("expected partner bob, got %+v", sess.Partner)
	}
}

func TestResolveTimeoutIsUnauthenticated(t *testing.T) {
	us := newFakeUserStore()
	us.addUser("alice", "alice@example.com", "pw")
	us.sessions["tok"] = "alice"
	us.lookupDelay = 200 * time.Millisecond

	svc := NewService(us, &fakeCoupleStore{}, 20*time.Millisecond)

	start := time.Now()
	sess := svc.Resolve(context.Background(), "tok")
	elapsed := time.Since(start)

	if sess.Authenticated() {
		t.Fatal("slow lookup should resolve to an unauthenticated session")
	}
	if elapsed > 150*time.Millisecond {
		t.Fatalf("Resolve should return near the timeout, took %v", elapsed)
	}
}

func TestResolveLookupFailureIsUnauthenticated(t *testing.T) {
	us := newFakeUserStore()
	us.lookupErr = errors.New("db down")
	svc := NewService(us, &fakeCoupleStore{}, time.Second)

	sess := svc.Resolve(context.Background(), "tok")
	if sess.Authenticated() {
		t.Fatal("lookup failure should resolve to an unauthenticated session")
	}
}

func TestResolveCoupleFailureKeepsUser(t *testing.T) {
	us := newFakeUserStore()
	us.addUser("alice", "alice@example.com", "pw")
	us.sessions["tok"] = "alice"
	cs := &fakeCoupleStore{err: errors.New("db down")}

	svc := NewService(us, cs, time.Second)
	sess := svc.Resolve(context.Background(), "tok")

	if !sess.Authenticated() {
		t.Fatal("couple lookup failure should not sign the user out")
	}
	if sess.Couple != nil {
		t.Fatal("expected no couple after lookup failure")
	}
}

func TestResolveUsesCache(t *testing.T) {
	us := newFakeUserStore()
	us.addUser("alice", "alice@example.com", "pw")
	us.sessions["tok"] = "alice"
	cs := &fakeCoupleStore{}

	svc := NewService(us, cs, time.Second)
	first := svc.Resolve(context.Background(), "tok")
	second := svc.Resolve(context.Background(), "tok")

	if first != second {
		t.Fatal("second Resolve should return the cached session")
	}
	if cs.calls != 1 {
		t.Fatalf("expected 1 couple lookup, got %d", cs.calls)
	}
}

func TestSignIn(t *testing.T) {
	us := newFakeUserStore()
	us.addUser("alice", "alice@example.com", "secret")
	svc := NewService(us, &fakeCoupleStore{}, time.Second)

	token, sess, err := svc.SignIn(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if token == "" || !sess.Authenticated() {
		t.Fatal("expected a token and an authenticated session")
	}

	// The session must be resolvable from the cache afterwards.
	if got := svc.Resolve(context.Background(), token); got.User.ID != "alice" {
		t.Fatalf("expected cached session for alice, got %+v", got.User)
	}
}

func TestSignInBadPassword(t *testing.T) {
	us := newFakeUserStore()
	us.addUser("alice", "alice@example.com", "secret")
	svc := NewService(us, &fakeCoupleStore{}, time.Second)

	_, _, err := svc.SignIn(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	_, _, err = svc.SignIn(context.Background(), "nobody@example.com", "secret")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestSignOutClearsCacheBeforeStoreDelete(t *testing.T) {
	us := newFakeUserStore()
	us.addUser("alice", "alice@example.com", "pw")
	us.sessions["tok"] = "alice"
	us.deleteDelay = 50 * time.Millisecond
	us.lookupErr = errors.New("store should not be consulted after sign-out")

	svc := NewService(us, &fakeCoupleStore{}, time.Second)
	svc.Resolve(context.Background(), "tok")
	us.lookupErr = nil
	us.lookupDelay = 0

	done := make(chan struct{})
	go func() {
		svc.SignOut(context.Background(), "tok")
		close(done)
	}()

	// Give SignOut a moment to clear the cache, well before the slow
	// store delete completes.
	time.Sleep(10 * time.Millisecond)
	delete(us.sessions, "tok")
	sess := svc.Resolve(context.Background(), "tok")
	if sess.Authenticated() {
		t.Fatal("stale identity visible while sign-out is in flight")
	}
	<-done

	if len(us.deleted) != 1 || us.deleted[0] != "tok" {
		t.Fatalf("expected remote session delete for tok, got %v", us.deleted)
	}
}
