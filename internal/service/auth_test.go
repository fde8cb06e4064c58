package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/userdesk/internal/apperror"
	"github.com/sakif/userdesk/internal/metrics"
	"github.com/sakif/userdesk/internal/model"
	"github.com/sakif/userdesk/internal/repository/memory"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeHasher is a transparent stand-in for bcrypt: the "hash" is the
// plaintext with a prefix. It keeps the length rule so validation paths
// behave like the real thing.
type fakeHasher struct {
	mu         sync.Mutex
	dummyCalls int
	verifyCall int
}

func (h *fakeHasher) Hash(plaintext string) (string, error) {
	if len([]rune(plaintext)) < 6 {
		return "", apperror.ValidationFailed("password", "Password must be at least 6 characters long")
	}
	return "hashed:" + plaintext, nil
}

func (h *fakeHasher) Verify(plaintext, hash string) bool {
	h.mu.Lock()
	h.verifyCall++
	h.mu.Unlock()
	return plaintext != "" && hash == "hashed:"+plaintext
}

func (h *fakeHasher) VerifyDummy(string) bool {
	h.mu.Lock()
	h.dummyCalls++
	h.mu.Unlock()
	return false
}

// fakeSession records what the service did to the session.
type fakeSession struct {
	userID       int64
	userName     string
	established  int
	destroyed    int
	establishErr error
}

func (s *fakeSession) UserID() int64 { return s.userID }

func (s *fakeSession) Establish(_ context.Context, userID int64, userName string) error {
	if s.establishErr != nil {
		return s.establishErr
	}
	s.userID = userID
	s.userName = userName
	s.established++
	return nil
}

func (s *fakeSession) Destroy(context.Context) error {
	s.userID = 0
	s.userName = ""
	s.destroyed++
	return nil
}

// brokenRepo fails every call with an infrastructure error.
type brokenRepo struct{ err error }

func (b brokenRepo) Create(context.Context, *model.User) error { return b.err }
func (b brokenRepo) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, b.err
}
func (b brokenRepo) FindByID(context.Context, int64) (*model.User, error) { return nil, b.err }
func (b brokenRepo) Update(context.Context, int64, model.UserPatch) (*model.User, error) {
	return nil, b.err
}
func (b brokenRepo) Delete(context.Context, int64) (*model.User, error) { return nil, b.err }
func (b brokenRepo) List(context.Context) ([]model.User, error) { return nil, b.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seededStore holds the two bootstrap accounts with fake hashes.
func seededStore() *memory.UserStore {
	return memory.NewUserStore(
		model.User{ID: 1, Name: "John Doe", Email: "john@example.com", PasswordHash: "hashed:password123"},
		model.User{ID: 2, Name: "Jane Smith", Email: "jane@example.com", PasswordHash: "hashed:password123"},
	)
}

type authFixture struct {
	svc     *AuthService
	store   *memory.UserStore
	hasher  *fakeHasher
	metrics *metrics.Metrics
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	store := seededStore()
	hasher := &fakeHasher{}
	m := metrics.New(prometheus.NewRegistry())
	return &authFixture{
		svc:     NewAuthService(store, hasher, m, discardLogger()),
		store:   store,
		hasher:  hasher,
		metrics: m,
	}
}

func messageOf(err error) string {
	return apperror.PublicMessage(err)
}

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      RegisterInput
		wantMsg string
	}{
		{
			name:    "missing confirmation",
			in:      RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"},
			wantMsg: "All fields are required",
		},
		{
			name:    "missing name",
			in:      RegisterInput{Email: "a@x.com", Password: "secret1", ConfirmPassword: "secret1"},
			wantMsg: "All fields are required",
		},
		{
			name:    "mismatch",
			in:      RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1", ConfirmPassword: "secret2"},
			wantMsg: "Passwords do not match",
		},
		{
			name:    "too short",
			in:      RegisterInput{Name: "A", Email: "a@x.com", Password: "abc", ConfirmPassword: "abc"},
			wantMsg: "Password must be at least 6 characters long",
		},
		{
			name:    "short password wins over taken email",
			in:      RegisterInput{Name: "A", Email: "john@example.com", Password: "abc", ConfirmPassword: "abc"},
			wantMsg: "Password must be at least 6 characters long",
		},
		{
			name:    "email taken",
			in:      RegisterInput{Name: "A", Email: "john@example.com", Password: "secret1", ConfirmPassword: "secret1"},
			wantMsg: "Email already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			sess := &fakeSession{}

			_, err := f.svc.Register(context.Background(), sess, tt.in)

			require.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.wantMsg, messageOf(err))
			assert.Zero(t, sess.established, "no session on failure")
			assert.Equal(t, 2, f.store.Len(), "store unchanged on failure")
		})
	}
}

func TestRegister_Success(t *testing.T) {
	f := newAuthFixture(t)
	sess := &fakeSession{}
	ctx := context.Background()

	user, err := f.svc.Register(ctx, sess, RegisterInput{
		Name: "Alice", Email: "alice@x.com", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), user.ID)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, int64(3), sess.userID)
	assert.Equal(t, "Alice", sess.userName)

	stored, err := f.store.FindByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "hashed:secret1", stored.PasswordHash)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Registrations.WithLabelValues(metrics.OutcomeSuccess)))

	// The new account can log in.
	_, err = f.svc.Login(ctx, &fakeSession{}, "alice@x.com", "secret1")
	assert.NoError(t, err)
}

func TestRegister_SessionFailureIsInternal(t *testing.T) {
	f := newAuthFixture(t)
	sess := &fakeSession{establishErr: errors.New("entropy exhausted")}

	_, err := f.svc.Register(context.Background(), sess, RegisterInput{
		Name: "Alice", Email: "alice@x.com", Password: "secret1", ConfirmPassword: "secret1",
	})

	require.Error(t, err)
	assert.Equal(t, "Internal server error", messageOf(err))

	// The account was rolled back, so a retry is not told the email is taken.
	assert.Equal(t, 2, f.store.Len())
	_, err = f.svc.Register(context.Background(), &fakeSession{}, RegisterInput{
		Name: "Alice", Email: "alice@x.com", Password: "secret1", ConfirmPassword: "secret1",
	})
	assert.NoError(t, err)
}

// =========================================================================
// LOGIN
// =========================================================================

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t)
	sess := &fakeSession{}

	user, err := f.svc.Login(context.Background(), sess, "john@example.com", "password123")
	require.NoError(t, err)

	assert.Equal(t, &model.PublicUser{ID: 1, Name: "John Doe", Email: "john@example.com"}, user)
	assert.Equal(t, int64(1), sess.userID)
	assert.Equal(t, 1, sess.established)
}

func TestLogin_MissingFields(t *testing.T) {
	f := newAuthFixture(t)

	for _, creds := range [][2]string{{"", "password123"}, {"john@example.com", ""}} {
		_, err := f.svc.Login(context.Background(), &fakeSession{}, creds[0], creds[1])
		require.ErrorIs(t, err, apperror.ErrValidation)
		assert.Equal(t, "Email and password are required", messageOf(err))
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	unknownSess := &fakeSession{}
	_, errUnknown := f.svc.Login(ctx, unknownSess, "ghost@example.com", "password123")
	wrongSess := &fakeSession{}
	_, errWrong := f.svc.Login(ctx, wrongSess, "john@example.com", "nope-nope")

	require.ErrorIs(t, errUnknown, apperror.ErrUnauthorized)
	require.ErrorIs(t, errWrong, apperror.ErrUnauthorized)
	assert.Equal(t, messageOf(errUnknown), messageOf(errWrong))
	assert.Equal(t, "Invalid email or password", messageOf(errWrong))
	assert.Equal(t, apperror.Code(errUnknown), apperror.Code(errWrong))

	// Both paths paid for a comparison.
	assert.Equal(t, 1, f.hasher.dummyCalls)
	assert.Equal(t, 1, f.hasher.verifyCall)

	assert.Zero(t, unknownSess.established)
	assert.Zero(t, wrongSess.established)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues(metrics.OutcomeUnknownEmail)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues(metrics.OutcomeBadPassword)))
}

func TestLogin_EmailIsCaseSensitive(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Login(context.Background(), &fakeSession{}, "JOHN@example.com", "password123")

	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestLogin_AccountWithoutPasswordCannotLogIn(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &model.User{Name: "NoPass", Email: "nopass@x.com"}))

	sess := &fakeSession{}

	_, err := f.svc.Login(ctx, sess, "nopass@x.com", "anything")

	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.Equal(t, "Invalid email or password", messageOf(err))
	assert.Equal(t, 1, f.hasher.dummyCalls, "timing matches a real comparison")
	assert.Zero(t, f.hasher.verifyCall)
	assert.Zero(t, sess.established)
}

func TestLogin_StoreFailureIsInternal(t *testing.T) {
	svc := NewAuthService(brokenRepo{err: errors.New("disk on fire")}, &fakeHasher{}, nil, discardLogger())

	_, err := svc.Login(context.Background(), &fakeSession{}, "john@example.com", "password123")

	require.Error(t, err)
	assert.Equal(t, 500, apperror.Status(err))
	assert.False(t, strings.Contains(messageOf(err), "disk"))
}

// =========================================================================
// LOGOUT & CURRENT USER
// =========================================================================

func TestLogout_IsIdempotent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess := &fakeSession{userID: 1}

	require.NoError(t, f.svc.Logout(ctx, sess))
	require.NoError(t, f.svc.Logout(ctx, sess))

	assert.Equal(t, int64(0), sess.userID)
	assert.Equal(t, 2, sess.destroyed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Logouts), "only the logged-in logout counts")
}

func TestLogout_AnonymousIsNotCounted(t *testing.T) {
	f := newAuthFixture(t)

	require.NoError(t, f.svc.Logout(context.Background(), &fakeSession{}))

	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Logouts))
}

func TestCurrentUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		_, err := f.svc.CurrentUser(ctx, &fakeSession{})
		require.ErrorIs(t, err, apperror.ErrUnauthorized)
		assert.Equal(t, "Not authenticated", messageOf(err))
	})

	t.Run("logged in", func(t *testing.T) {
		user, err := f.svc.CurrentUser(ctx, &fakeSession{userID: 2})
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", user.Email)
	})

	t.Run("dangling session is destroyed", func(t *testing.T) {
		sess := &fakeSession{userID: 99}

		_, err := f.svc.CurrentUser(ctx, sess)

		require.ErrorIs(t, err, apperror.ErrNotFound)
		assert.Equal(t, "User not found", messageOf(err))
		assert.Equal(t, 1, sess.destroyed)
		assert.Equal(t, int64(0), sess.userID)
	})
}
