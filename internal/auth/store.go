// Package auth owns the sign-in/sign-out lifecycle: the mapping from
// credentials to a persisted session, the optional second-factor
// challenge, and the identity the rest of the client displays.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/drojas/tienda/internal/api"
	"github.com/drojas/tienda/internal/domain"
	"github.com/drojas/tienda/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

// Status is the auth state machine position.
type Status int

const (
	// StatusUnknown: process just started, stored session not yet checked.
	StatusUnknown Status = iota
	// StatusChecking: a stored token is being validated against the server.
	StatusChecking
	// StatusAnonymous: no valid session.
	StatusAnonymous
	// StatusAwaitingSecondFactor: credentials accepted, waiting for a code.
	StatusAwaitingSecondFactor
	// StatusAuthenticated: identity known, token persisted.
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusAnonymous:
		return "anonymous"
	case StatusAwaitingSecondFactor:
		return "awaiting_second_factor"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ErrSuperseded reports that a response arrived after Logout already
// invalidated the attempt; the result was discarded.
var ErrSuperseded = errors.New("superseded by logout")

// ErrNoPendingChallenge reports a second-factor submission with no login
// attempt waiting for one.
var ErrNoPendingChallenge = errors.New("no second-factor challenge pending")

// LoginOutcome tags the result of a login attempt that did not fail.
type LoginOutcome int

const (
	// LoginAuthenticated: token persisted, identity set.
	LoginAuthenticated LoginOutcome = iota
	// LoginSecondFactorRequired: credentials are valid but the account
	// wants a 6-digit code; resubmit via SubmitSecondFactor.
	LoginSecondFactorRequired
)

// LoginResult replaces the loading/success flag juggling of a UI with one
// tagged value.
type LoginResult struct {
	Outcome  LoginOutcome
	Identity *domain.Identity
	// ChallengeEmail is set on LoginSecondFactorRequired so the UI can
	// show which account is being challenged.
	ChallengeEmail string
}

// pendingChallenge holds the credentials of a login attempt that was
// answered with "second factor required". Kept only in memory, only long
// enough to retry the login call with a code attached.
type pendingChallenge struct {
	email    string
	password string
}

// sessionAPI is the subset of the API client the auth store needs.
// Defined here (point of use) so tests can inject a fake.
type sessionAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	CurrentUser(ctx context.Context) (*domain.Identity, error)
	Logout(ctx context.Context) error
}

// TokenStore is the slice of the persistence boundary the auth store
// touches. Satisfied by storage.Store.
type TokenStore interface {
	Token() string
	SetToken(token string) error
	ClearToken() error
}

type Store struct {
	mu       sync.Mutex
	status   Status
	identity *domain.Identity
	loading  bool
	pending  *pendingChallenge

	// gen invalidates in-flight network calls: Logout bumps it, and a
	// response captured under an older gen is discarded instead of
	// resurrecting Identity.
	gen      uint64
	inFlight bool

	api      sessionAPI
	tokens   TokenStore
	validate *validator.Validate
	logger   *slog.Logger

	onLogin  []func(domain.Identity)
	onLogout []func()
}

func NewStore(apiClient sessionAPI, tokens TokenStore, logger *slog.Logger) *Store {
	return &Store{
		status:   StatusUnknown,
		loading:  true,
		api:      apiClient,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger.With("component", "auth_store"),
	}
}

// OnLogin registers a hook fired whenever a session is established
// (login, second-factor completion, session restore, OAuth).
func (s *Store) OnLogin(fn func(domain.Identity)) {
	s.onLogin = append(s.onLogin, fn)
}

// OnLogout registers a hook fired on every sign-out, including the
// 401-forced kind. Cross-store effects (cart clearing, UI redirect) are
// wired here instead of hiding a dependency inside the store.
func (s *Store) OnLogout(fn func()) {
	s.onLogout = append(s.onLogout, fn)
}

func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Loading is true until the startup session check has settled. UIs wait
// on it before rendering protected content.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) Identity() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// IsAuthenticated requires both the identity and the persisted token:
// if either is missing the session does not count.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusAuthenticated && s.identity != nil && s.tokens.Token() != ""
}

// CheckSession validates the stored token, once, at startup. With no
// token it settles Anonymous immediately. Any failure (expired token,
// network error) clears the token: a doubtful session is no session.
func (s *Store) CheckSession(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return domain.ErrOperationInFlight
	}

	token := s.tokens.Token()
	if token == "" {
		s.status = StatusAnonymous
		s.loading = false
		s.mu.Unlock()
		metrics.SessionChecksTotal.WithLabelValues("no_token").Inc()
		return nil
	}

	if tokenExpiredLocally(token) {
		// No point in a round trip the server is guaranteed to reject.
		s.clearSessionLocked()
		s.loading = false
		s.mu.Unlock()
		metrics.SessionChecksTotal.WithLabelValues("expired_local").Inc()
		s.logger.Info("stored token already expired, discarded")
		return nil
	}

	s.status = StatusChecking
	s.inFlight = true
	gen := s.gen
	s.mu.Unlock()

	identity, err := s.api.CurrentUser(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	s.loading = false

	if gen != s.gen {
		if err != nil {
			// The 401 handler already signed us out while this very check
			// was in flight. That is a settled anonymous state, not a
			// stale result to discard.
			metrics.SessionChecksTotal.WithLabelValues("rejected").Inc()
			s.logger.Warn("session check failed", "error", err)
			return nil
		}
		// Logged out while the check was in flight; whatever came back
		// must not resurrect the session.
		return ErrSuperseded
	}

	if err != nil {
		s.clearSessionLocked()
		metrics.SessionChecksTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn("session check failed", "error", err)
		return nil
	}

	s.identity = identity
	s.status = StatusAuthenticated
	metrics.SessionChecksTotal.WithLabelValues("valid").Inc()
	s.fireLoginLocked(*identity)
	return nil
}

// Login posts the credentials. The non-error outcomes (authenticated,
// second factor required) collapse into LoginResult; failures are typed
// domain errors.
func (s *Store) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}

	return s.attemptLogin(ctx, email, password, "")
}

// SubmitSecondFactor retries the pending login with the 6-digit code
// attached. On an invalid code the challenge stays open so the UI can ask
// again; any other failure discards it.
func (s *Store) SubmitSecondFactor(ctx context.Context, code string) (*LoginResult, error) {
	code = strings.TrimSpace(code)
	if err := s.validate.Var(code, "required,len=6,numeric"); err != nil {
		return nil, fmt.Errorf("%w: the code must be 6 digits", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return nil, ErrNoPendingChallenge
	}
	email, password := s.pending.email, s.pending.password
	s.mu.Unlock()

	return s.attemptLogin(ctx, email, password, code)
}

// CancelSecondFactor discards the pending challenge and the credentials
// held with it.
func (s *Store) CancelSecondFactor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending = nil
		s.status = StatusAnonymous
	}
}

func (s *Store) attemptLogin(ctx context.Context, email, password, code string) (*LoginResult, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, domain.ErrOperationInFlight
	}
	s.inFlight = true
	gen := s.gen
	s.mu.Unlock()

	resp, err := s.api.Login(ctx, api.LoginRequest{
		Email:         email,
		Password:      password,
		TwoFactorCode: code,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if gen != s.gen {
		return nil, ErrSuperseded
	}

	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(loginOutcomeLabel(err)).Inc()
		if code != "" && !errors.Is(err, domain.ErrInvalidSecondFactorCode) {
			// Challenge is dead for any non-retryable failure.
			s.pending = nil
			s.status = StatusAnonymous
		}
		return nil, err
	}

	if resp.Requires2FA {
		if code != "" {
			// The backend re-challenged a submitted code: the code was
			// wrong. Keep the challenge open.
			metrics.LoginAttemptsTotal.WithLabelValues("invalid_code").Inc()
			return nil, domain.ErrInvalidSecondFactorCode
		}
		s.pending = &pendingChallenge{email: email, password: password}
		s.status = StatusAwaitingSecondFactor
		metrics.LoginAttemptsTotal.WithLabelValues("second_factor_required").Inc()
		return &LoginResult{
			Outcome:        LoginSecondFactorRequired,
			ChallengeEmail: email,
		}, nil
	}

	if err := s.tokens.SetToken(resp.Token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	identity := domain.Identity{Name: resp.Name, Email: resp.Email}
	if identity.Email == "" {
		identity.Email = email
	}

	s.identity = &identity
	s.status = StatusAuthenticated
	s.loading = false
	s.pending = nil
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.logger.Info("signed in", "email", identity.Email)
	s.fireLoginLocked(identity)

	return &LoginResult{Outcome: LoginAuthenticated, Identity: &identity}, nil
}

// AdoptToken installs a token obtained outside the password flow (OAuth
// redirect) and resolves the identity behind it.
func (s *Store) AdoptToken(ctx context.Context, token string) (*domain.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrInvalidInput)
	}
	if err := s.tokens.SetToken(token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	identity, err := s.api.CurrentUser(ctx)
	if err != nil {
		_ = s.tokens.ClearToken()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	s.status = StatusAuthenticated
	s.loading = false
	s.logger.Info("signed in via oauth", "email", identity.Email)
	s.fireLoginLocked(*identity)
	return identity, nil
}

// Logout clears token and identity unconditionally; a failing server
// round trip is logged and otherwise ignored. Registered hooks observe
// every sign-out.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	// Best-effort server-side invalidation while the token is still
	// attached to outgoing requests.
	if s.tokens.Token() != "" {
		callCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := s.api.Logout(callCtx); err != nil {
			s.logger.Warn("server logout failed, signing out locally", "error", err)
		}
		cancel()
	}

	s.mu.Lock()
	if gen != s.gen {
		// A 401 on the logout call itself already signed us out through
		// HandleUnauthorized, hooks included.
		s.mu.Unlock()
		s.logger.Info("signed out")
		return
	}
	s.gen++ // anything still in flight lands on a dead generation
	s.identity = nil
	s.pending = nil
	s.status = StatusAnonymous
	s.loading = false
	if err := s.tokens.ClearToken(); err != nil {
		s.logger.Error("clear token", "error", err)
	}
	hooks := make([]func(), len(s.onLogout))
	copy(hooks, s.onLogout)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	s.logger.Info("signed out")
}

// HandleUnauthorized is wired to the API client's 401 callback: the
// client already stripped the token, the store drops the identity so the
// UI reflects the signed-out state.
func (s *Store) HandleUnauthorized() {
	s.mu.Lock()
	wasAuthed := s.identity != nil
	s.gen++
	s.identity = nil
	s.pending = nil
	s.status = StatusAnonymous
	hooks := make([]func(), len(s.onLogout))
	copy(hooks, s.onLogout)
	s.mu.Unlock()

	if !wasAuthed {
		return
	}
	s.logger.Warn("session rejected by server, signed out")
	for _, fn := range hooks {
		fn()
	}
}

// clearSessionLocked drops identity and token together; one is never
// kept without the other. Must be called with the mutex held.
func (s *Store) clearSessionLocked() {
	s.identity = nil
	s.status = StatusAnonymous
	if err := s.tokens.ClearToken(); err != nil {
		s.logger.Error("clear token", "error", err)
	}
}

// fireLoginLocked runs the login hooks while still holding the lock so a
// concurrent logout cannot interleave; hooks must not call back into the
// store.
func (s *Store) fireLoginLocked(identity domain.Identity) {
	for _, fn := range s.onLogin {
		fn(identity)
	}
}

// tokenExpiredLocally inspects the JWT exp claim without verifying the
// signature (the client has no key; the server remains the authority).
// Any parse problem means "not locally decidable" and defers to the
// server.
func tokenExpiredLocally(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

func loginOutcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrInvalidSecondFactorCode):
		return "invalid_code"
	case errors.Is(err, domain.ErrAccountNotVerified):
		return "not_verified"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "not_found"
	default:
		return "error"
	}
}
