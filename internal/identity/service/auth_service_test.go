package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"task-tracker/backend/internal/security"
	sessiondomain "task-tracker/backend/internal/session/domain"
	sessionrepo "task-tracker/backend/internal/session/repository"
	telemetrydomain "task-tracker/backend/internal/telemetry/domain"
	userdomain "task-tracker/backend/internal/user/domain"
	userrepo "task-tracker/backend/internal/user/repository"
)

const testSecret = "identity-test-secret-0123456789ab"

type memUserRepo struct {
	mu         sync.Mutex
	byUsername map[string]*userdomain.User
	getErr     error
	createErr  error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byUsername: make(map[string]*userdomain.User)}
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.byUsername[username], nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byUsername[u.Username]; ok {
		return userrepo.ErrUsernameTaken
	}
	r.byUsername[u.Username] = u
	return nil
}

// failingStore fails every call with err.
type failingStore struct{ err error }

func (f failingStore) Put(context.Context, string, string, string) error { return f.err }
func (f failingStore) Get(context.Context, string) (*sessiondomain.Session, error) {
	return nil, f.err
}
func (f failingStore) Delete(context.Context, string) error { return f.err }

type auditRecord struct {
	eventType, username, reason string
}

type captureAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (c *captureAudit) LogEvent(_ context.Context, eventType, username, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, auditRecord{eventType, username, reason})
}

func (c *captureAudit) last() auditRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.records) == 0 {
		return auditRecord{}
	}
	return c.records[len(c.records)-1]
}

type fixture struct {
	svc      *AuthService
	users    *memUserRepo
	sessions *sessionrepo.MemoryStore
	codec    *security.TokenCodec
	audit    *captureAudit
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	codec, err := security.NewTokenCodec(testSecret, 30*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	f := &fixture{
		users:    newMemUserRepo(),
		sessions: sessionrepo.NewMemoryStore(sessiondomain.DefaultTTL),
		codec:    codec,
		audit:    &captureAudit{},
	}
	opts.Audit = f.audit
	f.svc = NewAuthService(f.users, f.sessions, security.NewHasher(bcrypt.MinCost), codec, opts)
	return f
}

func (f *fixture) registerAndLogin(t *testing.T, username, password string) *TokenPair {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, username, password); err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	pair, err := f.svc.Login(ctx, username, password)
	if err != nil {
		t.Fatalf("Login(%s): %v", username, err)
	}
	return pair
}

func creds(p *TokenPair) Credentials {
	return Credentials{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}

func TestRegister_CreatesUserWithHashedPassword(t *testing.T) {
	f := newFixture(t, Options{})
	u, err := f.svc.Register(context.Background(), "  alice ", "s3cret")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID == "" || u.Username != "alice" {
		t.Errorf("user = %+v", u)
	}
	if u.PasswordHash == "s3cret" {
		t.Fatal("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
	if got := f.audit.last(); got.eventType != telemetrydomain.EventRegister || got.reason != "" {
		t.Errorf("audit = %+v", got)
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "alice", "one"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := f.svc.Register(ctx, "alice", "two"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("second Register = %v, want ErrUsernameTaken", err)
	}
	if got := f.audit.last(); got.reason != "username_taken" {
		t.Errorf("audit reason = %q", got.reason)
	}
}

func TestRegister_RaceOnUniqueConstraint(t *testing.T) {
	f := newFixture(t, Options{})
	f.users.createErr = userrepo.ErrUsernameTaken
	if _, err := f.svc.Register(context.Background(), "alice", "pw"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("Register = %v, want ErrUsernameTaken", err)
	}
}

func TestRegister_InvalidInput(t *testing.T) {
	f := newFixture(t, Options{})
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	cases := map[string][2]string{
		"empty username":    {"", "pw"},
		"blank username":    {"   ", "pw"},
		"empty password":    {"alice", ""},
		"password too long": {"alice", string(long)},
		"username too long": {string(make([]byte, 65)), "pw"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := f.svc.Register(context.Background(), c[0], c[1]); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Register = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestLogin_ThenAuthenticate(t *testing.T) {
	f := newFixture(t, Options{})
	pair := f.registerAndLogin(t, "alice", "pw")

	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.TokenType != "bearer" {
		t.Fatalf("pair = %+v", pair)
	}
	sess, _ := f.sessions.Get(context.Background(), "alice")
	if sess == nil || sess.AccessToken != pair.AccessToken || sess.RefreshToken != pair.RefreshToken {
		t.Fatalf("stored session = %+v, want issued pair", sess)
	}

	u, err := f.svc.Authenticate(context.Background(), creds(pair))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("Authenticate user = %q, want alice", u.Username)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "alice", "right"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for name, c := range map[string][2]string{
		"wrong password": {"alice", "wrong"},
		"unknown user":   {"mallory", "right"},
		"empty":          {"", ""},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := f.svc.Login(ctx, c[0], c[1]); !errors.Is(err, ErrBadCredentials) {
				t.Errorf("Login = %v, want ErrBadCredentials", err)
			}
		})
	}
	if f.sessions.Len() != 0 {
		t.Error("failed logins must not create sessions")
	}
}

// A second login replaces the first session: the first pair is rejected, the second accepted.
func TestLogin_SecondLoginInvalidatesFirst(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	first := f.registerAndLogin(t, "alice", "pw")
	second, err := f.svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if second.AccessToken == first.AccessToken || second.RefreshToken == first.RefreshToken {
		t.Fatal("second login must mint new tokens")
	}

	if _, err := f.svc.Authenticate(ctx, creds(first)); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("Authenticate(first) = %v, want ErrTokenMismatch", err)
	}
	if _, err := f.svc.Authenticate(ctx, creds(second)); err != nil {
		t.Fatalf("Authenticate(second): %v", err)
	}
	// only the rejected attempt is audited
	if got := f.audit.last(); got.eventType != telemetrydomain.EventAuthenticate || got.reason != "token_mismatch" {
		t.Errorf("last audit = %+v", got)
	}
}

func TestLogout_ThenAuthenticate(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	pair := f.registerAndLogin(t, "bob", "pw")

	if err := f.svc.Logout(ctx, creds(pair)); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, creds(pair)); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Authenticate after logout = %v, want ErrSessionNotFound", err)
	}
	if got := f.audit.last(); got.eventType != telemetrydomain.EventAuthenticate || got.username != "bob" || got.reason != "session_not_found" {
		t.Errorf("audit = %+v", got)
	}
	// logout again is still allowed; deleting an absent session is a no-op
	if err := f.svc.Logout(ctx, creds(pair)); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestLogout_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	pair := f.registerAndLogin(t, "bob", "pw")
	ghost, _ := f.codec.IssueRefreshToken("ghost")

	tests := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{"no access", Credentials{RefreshToken: pair.RefreshToken}, ErrMissingCredentials},
		{"no refresh", Credentials{AccessToken: pair.AccessToken}, ErrMissingCredentials},
		{"garbage refresh", Credentials{AccessToken: "a", RefreshToken: "garbage"}, ErrInvalidToken},
		{"unknown subject", Credentials{AccessToken: "a", RefreshToken: ghost}, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.Logout(ctx, tt.creds); !errors.Is(err, tt.want) {
				t.Errorf("Logout = %v, want %v", err, tt.want)
			}
		})
	}
	if sess, _ := f.sessions.Get(ctx, "bob"); sess == nil {
		t.Error("failed logouts must leave the session in place")
	}
}

func TestRefresh_RotatesAccessKeepsRefresh(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	pair := f.registerAndLogin(t, "alice", "pw")

	refreshed, err := f.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.RefreshToken != pair.RefreshToken {
		t.Error("refresh token must be reused unchanged")
	}
	if refreshed.AccessToken == pair.AccessToken {
		t.Fatal("refresh must mint a new access token")
	}

	if _, err := f.svc.Authenticate(ctx, creds(pair)); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("Authenticate(old access) = %v, want ErrTokenMismatch", err)
	}
	if _, err := f.svc.Authenticate(ctx, creds(refreshed)); err != nil {
		t.Fatalf("Authenticate(new access): %v", err)
	}
}

func TestRefresh_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if _, err := f.svc.Refresh(ctx, ""); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Refresh(\"\") = %v, want ErrMissingCredentials", err)
	}
	if _, err := f.svc.Refresh(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Refresh(garbage) = %v, want ErrInvalidToken", err)
	}
}

// By default a decodable refresh token is trusted even when no session holds it.
func TestRefresh_DefaultTrustsAnyValidRefreshToken(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	pair := f.registerAndLogin(t, "bob", "pw")
	if err := f.svc.Logout(ctx, creds(pair)); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	refreshed, err := f.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh after logout: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, creds(refreshed)); err != nil {
		t.Fatalf("Authenticate after refresh: %v", err)
	}
}

func TestRefresh_Strict(t *testing.T) {
	f := newFixture(t, Options{StrictRefresh: true})
	ctx := context.Background()
	first := f.registerAndLogin(t, "alice", "pw")

	second, err := f.svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("Refresh(superseded) = %v, want ErrTokenMismatch", err)
	}
	if _, err := f.svc.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("Refresh(current): %v", err)
	}
	if err := f.svc.Logout(ctx, creds(second)); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, second.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Refresh after logout = %v, want ErrSessionNotFound", err)
	}
}

func TestAuthenticate_ExpiredRefreshToken(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	past := f.codec.WithClock(func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) })
	access, _ := past.IssueAccessToken("alice")
	refresh, _ := past.IssueRefreshToken("alice")
	if err := f.sessions.Put(ctx, "alice", access, refresh); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := f.svc.Authenticate(ctx, Credentials{AccessToken: access, RefreshToken: refresh}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Authenticate(expired) = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	pair := f.registerAndLogin(t, "alice", "pw")
	ghost, _ := f.codec.IssueRefreshToken("ghost")

	if _, err := f.svc.Register(ctx, "carol", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	carolRefresh, _ := f.codec.IssueRefreshToken("carol")

	tests := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{"both missing", Credentials{}, ErrMissingCredentials},
		{"access missing", Credentials{RefreshToken: pair.RefreshToken}, ErrMissingCredentials},
		{"refresh missing", Credentials{AccessToken: pair.AccessToken}, ErrMissingCredentials},
		{"refresh forged", Credentials{AccessToken: pair.AccessToken, RefreshToken: "x.y.z"}, ErrInvalidToken},
		{"user deleted", Credentials{AccessToken: pair.AccessToken, RefreshToken: ghost}, ErrUserNotFound},
		{"no session", Credentials{AccessToken: "a", RefreshToken: carolRefresh}, ErrSessionNotFound},
		{"access swapped", Credentials{AccessToken: pair.RefreshToken, RefreshToken: pair.RefreshToken}, ErrTokenMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := f.svc.Authenticate(ctx, tt.creds)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authenticate = %v, want %v", err, tt.want)
			}
			if u != nil {
				t.Errorf("Authenticate returned user %+v on failure", u)
			}
		})
	}
}

// The access token is matched against the session, not decoded.
func TestAuthenticate_AccessTokenComparedNotDecoded(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	refresh, _ := f.codec.IssueRefreshToken("alice")
	if err := f.sessions.Put(ctx, "alice", "opaque-access", refresh); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, Credentials{AccessToken: "opaque-access", RefreshToken: refresh}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
}

func TestStoreFailuresFailClosed(t *testing.T) {
	codec, _ := security.NewTokenCodec(testSecret, time.Minute, time.Hour)
	users := newMemUserRepo()
	hasher := security.NewHasher(bcrypt.MinCost)
	hash, _ := hasher.Hash([]byte("pw"))
	users.byUsername["alice"] = &userdomain.User{ID: "u1", Username: "alice", PasswordHash: hash}
	refresh, _ := codec.IssueRefreshToken("alice")
	ctx := context.Background()
	down := errors.New("connection refused")

	svc := NewAuthService(users, failingStore{err: down}, hasher, codec, Options{})
	if _, err := svc.Login(ctx, "alice", "pw"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Login = %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{AccessToken: "a", RefreshToken: refresh}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Authenticate = %v, want ErrStoreUnavailable", err)
	}
	if err := svc.Logout(ctx, Credentials{AccessToken: "a", RefreshToken: refresh}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Logout = %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.Refresh(ctx, refresh); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Refresh = %v, want ErrStoreUnavailable", err)
	}

	users.getErr = down
	svc = NewAuthService(users, sessionrepo.NewMemoryStore(time.Hour), hasher, codec, Options{})
	if _, err := svc.Register(ctx, "bob", "pw"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Register = %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{AccessToken: "a", RefreshToken: refresh}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Authenticate with user store down = %v, want ErrStoreUnavailable", err)
	}
}

func TestConcurrentLogins_OneSessionSurvives(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	const n = 8
	pairs := make([]*TokenPair, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := f.svc.Login(ctx, "alice", "pw")
			if err != nil {
				t.Errorf("Login: %v", err)
				return
			}
			pairs[i] = p
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, p := range pairs {
		if p == nil {
			continue
		}
		if _, err := f.svc.Authenticate(ctx, creds(p)); err == nil {
			ok++
		}
	}
	if ok != 1 {
		t.Errorf("%d pairs authenticate, want exactly 1", ok)
	}
}

func TestReasonOf(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrTokenMismatch, "token_mismatch"},
		{storeErr(errors.New("x")), "store_unavailable"},
		{errors.New("boom"), "internal"},
	}
	for _, c := range cases {
		if got := ReasonOf(c.err); got != c.want {
			t.Errorf("ReasonOf(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
