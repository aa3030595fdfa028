package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/duetapp/duet/internal/couple"
	"github.com/duetapp/duet/internal/user"
)

// ErrInvalidCredentials is returned by SignIn for a bad email or password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore is the subset of the user store the service depends on.
// It exists to allow testing without a real database.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	CreateSession(ctx context.Context, userID string) (string, *user.Session, error)
	GetSessionUser(ctx context.Context, token string) (*user.User, error)
	DeleteSession(ctx context.Context, token string) error
}

// CoupleStore is the subset of the couple store the service depends on.
type CoupleStore interface {
	GetByUser(ctx context.Context, userID string) (*couple.Couple, error)
}

// Service resolves opaque session tokens into Sessions. Resolved sessions are
// cached per token so the common request path costs one map lookup; SignOut
// and Invalidate drop the cached entry.
type Service struct {
	users   UserStore
	couples CoupleStore

	resolveTimeout time.Duration

	mu    sync.Mutex
	cache map[string]*Session
}

// NewService creates a session service. resolveTimeout bounds how long
// Resolve may spend on database lookups before treating the request as
// unauthenticated.
func NewService(users UserStore, couples CoupleStore, resolveTimeout time.Duration) *Service {
	return &Service{
		users:          users,
		couples:        couples,
		resolveTimeout: resolveTimeout,
		cache:          make(map[string]*Session),
	}
}

// Resolve turns a token into a Session. It never returns an error: lookup
// failures and timeouts are logged and yield an unauthenticated session so
// startup and request handling never hang on a slow identity lookup.
func (s *Service) Resolve(ctx context.Context, token string) *Session {
	if token == "" {
		return &Session{}
	}

	s.mu.Lock()
	if sess, ok := s.cache[token]; ok {
		s.mu.Unlock()
		return sess
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()

	u, err := s.users.GetSessionUser(ctx, token)
	if err != nil {
		slog.Warn("session resolution failed, treating as unauthenticated", "error", err)
		return &Session{}
	}

	sess := &Session{User: u}
	s.attachCouple(ctx, sess)

	s.mu.Lock()
	s.cache[token] = sess
	s.mu.Unlock()

	return sess
}

// attachCouple populates the couple and partner fields for the session's
// user. A lookup failure leaves the session signed in but unpaired; pairing
// state is recoverable via RefreshCoupleData later.
func (s *Service) attachCouple(ctx context.Context, sess *Session) {
	c, err := s.couples.GetByUser(ctx, sess.User.ID)
	if err != nil {
		slog.Warn("couple lookup failed during session resolution", "user_id", sess.User.ID, "error", err)
		return
	}
	if c == nil {
		return
	}
	sess.Couple = c

	if partnerID := c.OtherUser(sess.User.ID); partnerID != "" {
		p, err := s.users.GetByID(ctx, partnerID)
		if err != nil {
			slog.Warn("partner lookup failed during session resolution", "user_id", sess.User.ID, "error", err)
			return
		}
		sess.Partner = p
	}
}

// RefreshCoupleData re-queries the couple record for the user, trying the
// user_a side then the user_b side. Returns nil with no error when the user
// has no couple.
func (s *Service) RefreshCoupleData(ctx context.Context, userID string) (*couple.Couple, error) {
	return s.couples.GetByUser(ctx, userID)
}

// SignIn verifies credentials and creates a session. On success the returned
// session is fully populated, including couple and partner; on any failure no
// session state is left behind.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, *Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.CheckPassword(u, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, _, err := s.users.CreateSession(ctx, u.ID)
	if err != nil {
		return "", nil, err
	}

	sess := &Session{User: u}
	s.attachCouple(ctx, sess)

	s.mu.Lock()
	s.cache[token] = sess
	s.mu.Unlock()

	return token, sess, nil
}

// SignOut clears the cached session before the store delete resolves, so no
// request can observe the stale identity while the remote call is in flight.
// Store failures are logged; the user is signed out locally regardless.
func (s *Service) SignOut(ctx context.Context, token string) {
	if token == "" {
		return
	}

	s.mu.Lock()
	delete(s.cache, token)
	s.mu.Unlock()

	if err := s.users.DeleteSession(ctx, token); err != nil {
		slog.Warn("failed to delete remote session", "error", err)
	}
}

// Invalidate drops the cached session for a token so the next Resolve
// re-fetches it. Used after pairing or profile changes.
func (s *Service) Invalidate(token string) {
	s.mu.Lock()
	delete(s.cache, token)
	s.mu.Unlock()
}
