package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaht-identity/internal/core/token"
)

func newTestEngine(t *testing.T) (*Engine, *Store) {
	t.Helper()
	s := newTestStore(t)
	seedRole(t, s, "User", true)
	seedRole(t, s, "Admin", true)

	iss, err := token.New([]byte("test-signing-key"), "identity-test", token.DefaultTTL)
	require.NoError(t, err)
	return NewEngine(s, iss, nil), s
}

func registration(username string) Registration {
	return Registration{
		Username:          username,
		Password:          "Secret123!",
		Role:              "User",
		Name:              "Ada",
		LastName:          "Lovelace",
		MothersMaidenName: "Byron",
		Email:             username + "@example.com",
		CellPhone:         "+52 55 1234 5678",
	}
}

func TestRegisterThenAuthenticate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, registration("alice")))

	tok, err := e.Authenticate(ctx, Credentials{Username: "alice", Password: "Secret123!"})
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	iss, _ := token.New([]byte("test-signing-key"), "identity-test", token.DefaultTTL)
	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "User", claims.Role)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Register(ctx, registration("alice")))

	_, err := e.Authenticate(ctx, Credentials{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_UnknownUserIndistinguishable(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Register(ctx, registration("alice")))

	_, errUnknown := e.Authenticate(ctx, Credentials{Username: "nobody", Password: "x"})
	_, errWrongPw := e.Authenticate(ctx, Credentials{Username: "alice", Password: "x"})

	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errWrongPw, ErrInvalidCredentials)
	// same shape: nothing distinguishes an unknown account from a bad password
	assert.Equal(t, errWrongPw.Error(), errUnknown.Error())
}

func TestAuthenticate_NoActiveRole(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Register(ctx, registration("alice")))
	require.NoError(t, s.db.Model(&UserRole{}).
		Where("active = ?", true).Update("active", false).Error)

	_, err := e.Authenticate(ctx, Credentials{Username: "alice", Password: "Secret123!"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_BlankInput(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for name, in := range map[string]Credentials{
		"empty username":      {Username: "", Password: "x"},
		"whitespace username": {Username: "   ", Password: "x"},
		"empty password":      {Username: "alice", Password: ""},
		"whitespace password": {Username: "alice", Password: "   "},
	} {
		_, err := e.Authenticate(ctx, in)
		require.ErrorIs(t, err, ErrInvalidInput, name)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, registration("bob")))
	err := e.Register(ctx, registration("bob"))
	require.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestRegister_GhostRoleLeavesNoUser(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	in := registration("bob")
	in.Role = "Ghost"
	require.ErrorIs(t, e.Register(ctx, in), ErrInvalidRole)

	u, err := s.FindUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, u, "failed registration must not leave a user behind")
}

func TestRegister_InactiveRoleRejected(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedRole(t, s, "Legacy", false)

	in := registration("bob")
	in.Role = "Legacy"
	require.ErrorIs(t, e.Register(ctx, in), ErrInvalidRole)
}

func TestRegister_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	cases := map[string]func(*Registration){
		"blank username":     func(r *Registration) { r.Username = "  " },
		"blank password":     func(r *Registration) { r.Password = " " },
		"blank role":         func(r *Registration) { r.Role = "" },
		"blank name":         func(r *Registration) { r.Name = "" },
		"blank last name":    func(r *Registration) { r.LastName = "" },
		"blank maiden name":  func(r *Registration) { r.MothersMaidenName = "" },
		"bad email":          func(r *Registration) { r.Email = "not-an-email" },
		"blank email":        func(r *Registration) { r.Email = "" },
		"bad phone":          func(r *Registration) { r.CellPhone = "call me" },
		"short phone":        func(r *Registration) { r.CellPhone = "+12" },
		"blank phone":        func(r *Registration) { r.CellPhone = "" },
		"over-long username": func(r *Registration) { r.Username = string(make([]byte, 101)) },
	}
	for name, mutate := range cases {
		in := registration("valid")
		mutate(&in)
		err := e.Register(ctx, in)
		require.ErrorIs(t, err, ErrInvalidInput, name)
	}
}

func TestRegister_FieldErrorNamesField(t *testing.T) {
	e, _ := newTestEngine(t)

	in := registration("valid")
	in.Email = "nope"
	err := e.Register(context.Background(), in)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Email", fe.Field)
}

func TestRegister_DoesNotReturnToken(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, registration("alice")))

	// the stored hash is opaque, never the plaintext
	u, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.NotContains(t, u.PasswordHash, "Secret123!")
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	const n = 2
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = e.Register(ctx, registration("carol"))
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrDuplicateUsername)
			dup++
		}
	}
	assert.Equal(t, 1, ok, "exactly one registration wins")
	assert.Equal(t, n-1, dup)
}
