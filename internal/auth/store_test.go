package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/drojas/tienda/internal/api"
	"github.com/drojas/tienda/internal/auth"
	"github.com/drojas/tienda/internal/domain"
	"github.com/drojas/tienda/internal/storage"
	"github.com/golang-jwt/jwt/v5"
)

// ---- fakes ----

type fakeAPI struct {
	login       func(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	currentUser func(ctx context.Context) (*domain.Identity, error)
	logout      func(ctx context.Context) error
}

func (f *fakeAPI) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	return f.login(ctx, req)
}

func (f *fakeAPI) CurrentUser(ctx context.Context) (*domain.Identity, error) {
	return f.currentUser(ctx)
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	if f.logout == nil {
		return nil
	}
	return f.logout(ctx)
}

// ---- helpers ----

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(f *fakeAPI) (*auth.Store, *storage.MemStore) {
	mem := storage.NewMemStore()
	return auth.NewStore(f, mem, discard()), mem
}

var testIdentity = domain.Identity{Name: "Ana", Email: "ana@example.com"}

func okLogin(req api.LoginRequest) *api.LoginResponse {
	return &api.LoginResponse{Token: "tok-123", Name: "Ana", Email: req.Email}
}

// ---- Login ----

func TestLogin_Success_PersistsTokenAndIdentity(t *testing.T) {
	f := &fakeAPI{
		login: func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
			return okLogin(req), nil
		},
	}
	s, mem := newStore(f)

	var hookIdentity *domain.Identity
	s.OnLogin(func(id domain.Identity) { hookIdentity = &id })

	result, err := s.Login(context.Background(), "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != auth.LoginAuthenticated {
		t.Fatalf("outcome = %v, want LoginAuthenticated", result.Outcome)
	}
	if mem.Token() != "tok-123" {
		t.Errorf("token = %q, want tok-123", mem.Token())
	}
	if !s.IsAuthenticated() {
		t.Error("IsAuthenticated() = false after successful login")
	}
	if s.Status() != auth.StatusAuthenticated {
		t.Errorf("status = %v, want authenticated", s.Status())
	}
	if hookIdentity == nil || hookIdentity.Email != "ana@example.com" {
		t.Errorf("login hook got %+v", hookIdentity)
	}
}

func TestLogin_InvalidCredentials_LeavesStoreAnonymous(t *testing.T) {
	f := &fakeAPI{
		login: func(_ context.Context, _ api.LoginRequest) (*api.LoginResponse, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	s, mem := newStore(f)

	_, err := s.Login(context.Background(), "ana@example.com", "wrong")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if s.Identity() != nil {
		t.Error("identity set after failed login")
	}
	if mem.Token() != "" {
		t.Error("token persisted after failed login")
	}
}

func TestLogin_RejectsMalformedEmailBeforeNetwork(t *testing.T) {
	called := false
	f := &fakeAPI{
		login: func(_ context.Context, _ api.LoginRequest) (*api.LoginResponse, error) {
			called = true
			return nil, nil
		},
	}
	s, _ := newStore(f)

	_, err := s.Login(context.Background(), "not-an-email", "secret")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
	if called {
		t.Error("API was called despite invalid input")
	}

	_, err = s.Login(context.Background(), "ana@example.com", "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for empty password, got %v", err)
	}
	if called {
		t.Error("API was called despite empty password")
	}
}

func TestLogin_SecondInFlightCallIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeAPI{
		login: func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
			close(started)
			<-release
			return okLogin(req), nil
		},
	}
	s, _ := newStore(f)

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Login(context.Background(), "ana@example.com", "secret")
		firstDone <- err
	}()
	<-started

	_, err := s.Login(context.Background(), "ana@example.com", "secret")
	if !errors.Is(err, domain.ErrOperationInFlight) {
		t.Errorf("want ErrOperationInFlight, got %v", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first login failed: %v", err)
	}
}

// ---- second factor ----

func TestLogin_SecondFactorRequired_ThenCodeCompletesIt(t *testing.T) {
	var codeSeen string
	f := &fakeAPI{
		login: func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
			if req.TwoFactorCode == "" {
				return &api.LoginResponse{Requires2FA: true}, nil
			}
			codeSeen = req.TwoFactorCode
			return okLogin(req), nil
		},
	}
	s, mem := newStore(f)

	result, err := s.Login(context.Background(), "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != auth.LoginSecondFactorRequired {
		t.Fatalf("outcome = %v, want LoginSecondFactorRequired", result.Outcome)
	}
	if result.ChallengeEmail != "ana@example.com" {
		t.Errorf("challenge email = %q", result.ChallengeEmail)
	}
	if s.Identity() != nil {
		t.Error("identity set while awaiting second factor")
	}
	if mem.Token() != "" {
		t.Error("token persisted while awaiting second factor")
	}
	if s.Status() != auth.StatusAwaitingSecondFactor {
		t.Errorf("status = %v, want awaiting_second_factor", s.Status())
	}

	result, err = s.SubmitSecondFactor(context.Background(), "123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != auth.LoginAuthenticated {
		t.Fatalf("outcome = %v, want LoginAuthenticated", result.Outcome)
	}
	if codeSeen != "123456" {
		t.Errorf("code sent = %q, want 123456", codeSeen)
	}
	if !s.IsAuthenticated() {
		t.Error("not authenticated after second factor")
	}
}

func TestSubmitSecondFactor_InvalidCode_KeepsChallengeOpen(t *testing.T) {
	attempts := 0
	f := &fakeAPI{
		login: func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
			if req.TwoFactorCode == "" {
				return &api.LoginResponse{Requires2FA: true}, nil
			}
			attempts++
			if attempts == 1 {
				return nil, domain.ErrInvalidSecondFactorCode
			}
			return okLogin(req), nil
		},
	}
	s, _ := newStore(f)

	if _, err := s.Login(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := s.SubmitSecondFactor(context.Background(), "000000")
	if !errors.Is(err, domain.ErrInvalidSecondFactorCode) {
		t.Fatalf("want ErrInvalidSecondFactorCode, got %v", err)
	}
	if s.Status() != auth.StatusAwaitingSecondFactor {
		t.Fatalf("challenge discarded after retryable failure: %v", s.Status())
	}

	// The backend answering "still requires 2FA" to a submitted code also
	// means the code was wrong.
	if _, err := s.SubmitSecondFactor(context.Background(), "654321"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !s.IsAuthenticated() {
		t.Error("not authenticated after valid retry")
	}
}

func TestSubmitSecondFactor_WithoutChallenge(t *testing.T) {
	s, _ := newStore(&fakeAPI{})

	_, err := s.SubmitSecondFactor(context.Background(), "123456")
	if !errors.Is(err, auth.ErrNoPendingChallenge) {
		t.Errorf("want ErrNoPendingChallenge, got %v", err)
	}
}

func TestSubmitSecondFactor_RejectsNonDigitCode(t *testing.T) {
	called := false
	f := &fakeAPI{
		login: func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
			if req.TwoFactorCode != "" {
				called = true
			}
			return &api.LoginResponse{Requires2FA: true}, nil
		},
	}
	s, _ := newStore(f)
	if _, err := s.Login(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, code := range []string{"12345", "1234567", "12a456", ""} {
		if _, err := s.SubmitSecondFactor(context.Background(), code); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("code %q: want ErrInvalidInput, got %v", code, err)
		}
	}
	if called {
		t.Error("API saw a code that should have failed local validation")
	}
}

func TestCancelSecondFactor_DiscardsChallenge(t *testing.T) {
	f := &fakeAPI{
		login: func(_ context.Context, _ api.LoginRequest) (*api.LoginResponse, error) {
			return &api.LoginResponse{Requires2FA: true}, nil
		},
	}
	s, _ := newStore(f)
	if _, err := s.Login(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.CancelSecondFactor()

	if s.Status() != auth.StatusAnonymous {
		t.Errorf("status = %v, want anonymous", s.Status())
	}
	if _, err := s.SubmitSecondFactor(context.Background(), "123456"); !errors.Is(err, auth.ErrNoPendingChallenge) {
		t.Errorf("challenge survived cancel: %v", err)
	}
}

// ---- Logout ----

func TestLogout_ClearsSessionEvenWhenServerCallFails(t *testing.T) {
	f := &fakeAPI{
		login: func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
			return okLogin(req), nil
		},
		logout: func(_ context.Context) error {
			return errors.New("backend down")
		},
	}
	s, mem := newStore(f)

	logoutHookFired := false
	s.OnLogout(func() { logoutHookFired = true })

	if _, err := s.Login(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	s.Logout(context.Background())

	if s.Identity() != nil {
		t.Error("identity survived logout")
	}
	if mem.Token() != "" {
		t.Error("token survived logout")
	}
	if s.Status() != auth.StatusAnonymous {
		t.Errorf("status = %v, want anonymous", s.Status())
	}
	if !logoutHookFired {
		t.Error("logout hook not fired")
	}
}

func TestLogout_401OnServerCall_FiresHooksOnce(t *testing.T) {
	var s *auth.Store
	var mem *storage.MemStore
	f := &fakeAPI{
		login: func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
			return okLogin(req), nil
		},
		logout: func(_ context.Context) error {
			// What the HTTP client does when the logout call answers 401:
			// strip the token, then notify the auth store.
			_ = mem.ClearToken()
			s.HandleUnauthorized()
			return domain.ErrSessionExpired
		},
	}
	s, mem = newStore(f)

	fired := 0
	s.OnLogout(func() { fired++ })

	if _, err := s.Login(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	s.Logout(context.Background())

	if fired != 1 {
		t.Errorf("logout hooks fired %d times, want 1", fired)
	}
	if s.Identity() != nil {
		t.Error("identity survived logout")
	}
	if mem.Token() != "" {
		t.Error("token survived logout")
	}
	if s.Status() != auth.StatusAnonymous {
		t.Errorf("status = %v, want anonymous", s.Status())
	}
}

func TestLogout_DiscardsLateLoginResponse(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeAPI{
		login: func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
			close(started)
			<-release
			return okLogin(req), nil
		},
	}
	s, mem := newStore(f)

	loginErr := make(chan error, 1)
	go func() {
		_, err := s.Login(context.Background(), "ana@example.com", "secret")
		loginErr <- err
	}()
	<-started

	s.Logout(context.Background())
	close(release)

	if err := <-loginErr; !errors.Is(err, auth.ErrSuperseded) {
		t.Fatalf("want ErrSuperseded, got %v", err)
	}
	if s.Identity() != nil {
		t.Error("late response resurrected identity")
	}
	if mem.Token() != "" {
		t.Error("late response resurrected token")
	}
}

// ---- CheckSession ----

func TestCheckSession_NoToken_SettlesAnonymous(t *testing.T) {
	s, _ := newStore(&fakeAPI{})

	if !s.Loading() {
		t.Fatal("store not loading before first check")
	}
	if err := s.CheckSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Loading() {
		t.Error("still loading after check settled")
	}
	if s.Status() != auth.StatusAnonymous {
		t.Errorf("status = %v, want anonymous", s.Status())
	}
}

func TestCheckSession_ValidToken_RestoresIdentity(t *testing.T) {
	f := &fakeAPI{
		currentUser: func(_ context.Context) (*domain.Identity, error) {
			id := testIdentity
			return &id, nil
		},
	}
	s, mem := newStore(f)
	if err := mem.SetToken("opaque-token"); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	var restored *domain.Identity
	s.OnLogin(func(id domain.Identity) { restored = &id })

	if err := s.CheckSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.IsAuthenticated() {
		t.Error("not authenticated after valid session check")
	}
	if restored == nil || restored.Email != testIdentity.Email {
		t.Errorf("login hook got %+v", restored)
	}
}

func TestCheckSession_RejectedToken_ClearsItAndSettles(t *testing.T) {
	f := &fakeAPI{
		currentUser: func(_ context.Context) (*domain.Identity, error) {
			return nil, domain.ErrSessionExpired
		},
	}
	s, mem := newStore(f)
	if err := mem.SetToken("opaque-token"); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	if err := s.CheckSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mem.Token() != "" {
		t.Error("rejected token not removed from storage")
	}
	if s.Status() != auth.StatusAnonymous {
		t.Errorf("status = %v, want anonymous", s.Status())
	}
	if s.Loading() {
		t.Error("still loading after rejection")
	}
}

func TestCheckSession_401DuringCheck_SettlesAnonymous(t *testing.T) {
	var s *auth.Store
	var mem *storage.MemStore
	f := &fakeAPI{
		currentUser: func(_ context.Context) (*domain.Identity, error) {
			// What the HTTP client does when the who-am-I call answers
			// 401: strip the token, then notify the auth store.
			_ = mem.ClearToken()
			s.HandleUnauthorized()
			return nil, domain.ErrSessionExpired
		},
	}
	s, mem = newStore(f)
	if err := mem.SetToken("rejected-token"); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	if err := s.CheckSession(context.Background()); err != nil {
		t.Fatalf("startup check with a rejected token must settle, got %v", err)
	}
	if s.Status() != auth.StatusAnonymous {
		t.Errorf("status = %v, want anonymous", s.Status())
	}
	if s.Loading() {
		t.Error("still loading after rejection")
	}
	if mem.Token() != "" {
		t.Error("rejected token kept in storage")
	}
}

func TestCheckSession_LocallyExpiredJWT_SkipsNetworkCall(t *testing.T) {
	called := false
	f := &fakeAPI{
		currentUser: func(_ context.Context) (*domain.Identity, error) {
			called = true
			return nil, nil
		},
	}
	s, mem := newStore(f)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	if err := mem.SetToken(expired); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	if err := s.CheckSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("server called for a token that is locally expired")
	}
	if mem.Token() != "" {
		t.Error("expired token not removed")
	}
	if s.Status() != auth.StatusAnonymous {
		t.Errorf("status = %v, want anonymous", s.Status())
	}
}

// ---- forced sign-out ----

func TestHandleUnauthorized_DropsIdentityAndFiresHooks(t *testing.T) {
	f := &fakeAPI{
		login: func(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
			return okLogin(req), nil
		},
	}
	s, _ := newStore(f)

	fired := 0
	s.OnLogout(func() { fired++ })

	if _, err := s.Login(context.Background(), "ana@example.com", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	s.HandleUnauthorized()

	if s.Identity() != nil {
		t.Error("identity survived forced sign-out")
	}
	if fired != 1 {
		t.Errorf("logout hooks fired %d times, want 1", fired)
	}

	// Already anonymous: a second 401 must not re-fire the hooks.
	s.HandleUnauthorized()
	if fired != 1 {
		t.Errorf("logout hooks fired %d times after repeat 401, want 1", fired)
	}
}

// ---- AdoptToken (OAuth) ----

func TestAdoptToken_ResolvesIdentity(t *testing.T) {
	f := &fakeAPI{
		currentUser: func(_ context.Context) (*domain.Identity, error) {
			id := testIdentity
			return &id, nil
		},
	}
	s, mem := newStore(f)

	id, err := s.AdoptToken(context.Background(), "oauth-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Email != testIdentity.Email {
		t.Errorf("identity = %+v", id)
	}
	if mem.Token() != "oauth-token" {
		t.Errorf("token = %q", mem.Token())
	}
	if !s.IsAuthenticated() {
		t.Error("not authenticated after token adoption")
	}
}

func TestAdoptToken_RejectedToken_IsNotKept(t *testing.T) {
	f := &fakeAPI{
		currentUser: func(_ context.Context) (*domain.Identity, error) {
			return nil, domain.ErrSessionExpired
		},
	}
	s, mem := newStore(f)

	if _, err := s.AdoptToken(context.Background(), "bad-token"); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
	if mem.Token() != "" {
		t.Error("rejected oauth token kept in storage")
	}
	if s.IsAuthenticated() {
		t.Error("authenticated with a rejected token")
	}
}
