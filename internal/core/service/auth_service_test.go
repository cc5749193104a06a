package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

func TestAuthService_Login_Success(t *testing.T) {
	f := newFixture(t)
	f.authAPI.loginFn = func(_ context.Context, in domain.LoginInput) (*domain.AuthResult, error) {
		if in.Email != "ana@example.com" {
			t.Fatalf("email not trimmed: %q", in.Email)
		}
		return &domain.AuthResult{
			User:  domain.User{ID: "u1", Email: in.Email, UserType: domain.UserTypeClient, Balance: 12.5},
			Token: "tok-1",
		}, nil
	}

	user, err := f.auth.Login(context.Background(), domain.LoginInput{Email: "  ana@example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if f.tokens.Token() != "tok-1" {
		t.Fatalf("token not stored: %q", f.tokens.Token())
	}
	if !f.auth.IsAuthenticated() {
		t.Fatalf("expected authenticated store")
	}
	if f.persist.saved == nil || f.persist.saved.Token != "tok-1" || f.persist.saved.User.ID != "u1" {
		t.Fatalf("session not persisted: %+v", f.persist.saved)
	}
}

func TestAuthService_Login_AsAnotherUserDropsPreviousData(t *testing.T) {
	f := newFixture(t)
	f.authAPI.loginFn = func(_ context.Context, in domain.LoginInput) (*domain.AuthResult, error) {
		id := "u1"
		if in.Email == "bob@example.com" {
			id = "u2"
		}
		return &domain.AuthResult{User: domain.User{ID: id, Email: in.Email, UserType: domain.UserTypeClient}, Token: "tok-" + id}, nil
	}
	ctx := context.Background()

	if _, err := f.auth.Login(ctx, domain.LoginInput{Email: "ana@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("first Login: %v", err)
	}
	f.bookingStore.Mine.Prepend(domain.Booking{ID: "ana-booking"})
	cleared := f.cache.cleared

	if _, err := f.auth.Login(ctx, domain.LoginInput{Email: "ana@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("repeat Login: %v", err)
	}
	if f.bookingStore.Mine.Len() != 1 {
		t.Fatalf("same-user login reset the stores")
	}
	if f.cache.cleared != cleared+1 {
		t.Fatalf("cache cleared %d times on login, want 1", f.cache.cleared-cleared)
	}

	if _, err := f.auth.Login(ctx, domain.LoginInput{Email: "bob@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if f.bookingStore.Mine.Len() != 0 {
		t.Fatalf("bob still sees %v", f.bookingStore.Mine.Items())
	}
	if f.cache.cleared != cleared+2 {
		t.Fatalf("cache not cleared on account switch")
	}
	if user, _ := f.auth.CurrentUser(); user.ID != "u2" || f.tokens.Token() != "tok-u2" {
		t.Fatalf("current user = %+v token %q", user, f.tokens.Token())
	}
}

func TestAuthService_Login_ValidationSkipsRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Login(context.Background(), domain.LoginInput{Email: "not-an-email", Password: "x"})
	assertType(t, err, domain.TypeValidation)
	if f.authAPI.calls != 0 {
		t.Fatalf("expected no request, got %d", f.authAPI.calls)
	}
}

func TestAuthService_Login_ServerErrorKeepsType(t *testing.T) {
	f := newFixture(t)
	f.authAPI.loginFn = func(context.Context, domain.LoginInput) (*domain.AuthResult, error) {
		return nil, &domain.AppError{Type: domain.TypeAuthentication, Status: 401, Message: "Invalid credentials"}
	}

	_, err := f.auth.Login(context.Background(), domain.LoginInput{Email: "ana@example.com", Password: "wrong"})
	ae := assertType(t, err, domain.TypeAuthentication)
	if ae.Message != "Invalid credentials" {
		t.Fatalf("message = %q", ae.Message)
	}
	if f.auth.IsAuthenticated() {
		t.Fatalf("failed login must not authenticate")
	}
	if !errors.Is(f.authStore.Err(), domain.ErrAuthentication) {
		t.Fatalf("store error = %v", f.authStore.Err())
	}
}

func TestAuthService_Login_MissingToken(t *testing.T) {
	f := newFixture(t)
	f.authAPI.loginFn = func(context.Context, domain.LoginInput) (*domain.AuthResult, error) {
		return &domain.AuthResult{User: domain.User{ID: "u1"}}, nil
	}

	_, err := f.auth.Login(context.Background(), domain.LoginInput{Email: "ana@example.com", Password: "secret1"})
	assertType(t, err, domain.TypeAuthentication)
}

func TestAuthService_Register(t *testing.T) {
	f := newFixture(t)
	f.authAPI.registerFn = func(_ context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
		return &domain.AuthResult{User: domain.User{ID: "u2", FullName: in.FullName, UserType: in.UserType}, Token: "tok-2"}, nil
	}

	in := domain.RegisterInput{FullName: " Ana Lima ", Email: "ana@example.com", NIF: "123456789", Password: "secret1", UserType: domain.UserTypeProvider}
	user, err := f.auth.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.FullName != "Ana Lima" {
		t.Fatalf("full name not trimmed: %q", user.FullName)
	}
	if f.tokens.Token() != "tok-2" {
		t.Fatalf("expected sign-in after register")
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []domain.RegisterInput{
		{FullName: "Al", Email: "al@example.com", NIF: "123456789", Password: "secret1", UserType: domain.UserTypeClient},
		{FullName: "Ana Lima", Email: "ana@example.com", NIF: "12345", Password: "secret1", UserType: domain.UserTypeClient},
		{FullName: "Ana Lima", Email: "ana@example.com", NIF: "123456789", Password: "123", UserType: domain.UserTypeClient},
		{FullName: "Ana Lima", Email: "ana@example.com", NIF: "123456789", Password: "secret1", UserType: "admin"},
	}
	for i, in := range cases {
		if _, err := f.auth.Register(context.Background(), in); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		} else {
			assertType(t, err, domain.TypeValidation)
		}
	}
	if f.authAPI.calls != 0 {
		t.Fatalf("expected no requests, got %d", f.authAPI.calls)
	}
}

func TestAuthService_Logout_ClearsEverything(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeClient, 10)
	f.persist.saved = &domain.PersistedSession{Token: "tok-client"}
	f.bookingStore.Mine.Prepend(domain.Booking{ID: "b1"})
	f.authAPI.logoutFn = func(context.Context) error {
		return &domain.AppError{Type: domain.TypeNetwork, Message: "unable to reach the server"}
	}

	if err := f.auth.Logout(context.Background()); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if f.authAPI.calls != 1 {
		t.Fatalf("expected server logout attempt, got %d calls", f.authAPI.calls)
	}
	if f.auth.IsAuthenticated() || f.tokens.Token() != "" {
		t.Fatalf("session survived logout")
	}
	if f.persist.saved != nil || f.persist.clears == 0 {
		t.Fatalf("persisted session not cleared")
	}
	if f.cache.cleared == 0 {
		t.Fatalf("cache not cleared")
	}
	if f.bookingStore.Mine.Len() != 0 {
		t.Fatalf("sign-out hook did not reset stores")
	}
}

func TestAuthService_Logout_WithoutTokenSkipsServer(t *testing.T) {
	f := newFixture(t)

	if err := f.auth.Logout(context.Background()); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if f.authAPI.calls != 0 {
		t.Fatalf("expected no server call, got %d", f.authAPI.calls)
	}
}

func TestAuthService_HandleUnauthorized_ClearsSession(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeClient, 10)

	f.auth.HandleUnauthorized(context.Background(), &domain.AppError{Type: domain.TypeAuthentication, Status: 401, Message: "token expired"})

	if f.auth.IsAuthenticated() || f.tokens.Token() != "" {
		t.Fatalf("401 did not clear the session")
	}
	if f.authAPI.calls != 0 {
		t.Fatalf("401 handling must not call the server")
	}
	_, err := f.catalog.List(context.Background(), domain.ServiceFilters{})
	assertType(t, err, domain.TypeAuthentication)
}

func TestAuthService_Restore(t *testing.T) {
	saved := domain.PersistedSession{
		User:  domain.User{ID: "u1", UserType: domain.UserTypeClient, Balance: 1},
		Token: "tok-saved",
	}

	t.Run("nothing saved", func(t *testing.T) {
		f := newFixture(t)
		user, err := f.auth.Restore(context.Background())
		if err != nil || user != nil {
			t.Fatalf("Restore = %v, %v; want nil, nil", user, err)
		}
	})

	t.Run("verified", func(t *testing.T) {
		f := newFixture(t)
		f.persist.saved = &saved
		f.userAPI.profileFn = func(context.Context) (*domain.User, error) {
			if f.tokens.Token() != "tok-saved" {
				t.Fatalf("token not restored before verification")
			}
			return &domain.User{ID: "u1", UserType: domain.UserTypeClient, Balance: 42}, nil
		}

		user, err := f.auth.Restore(context.Background())
		if err != nil {
			t.Fatalf("Restore returned error: %v", err)
		}
		if user.Balance != 42 {
			t.Fatalf("profile not applied: %+v", user)
		}
		if cur, _ := f.auth.CurrentUser(); cur.Balance != 42 {
			t.Fatalf("store balance = %v", cur.Balance)
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		f := newFixture(t)
		f.persist.saved = &saved
		f.userAPI.profileFn = func(context.Context) (*domain.User, error) {
			return nil, &domain.AppError{Type: domain.TypeAuthentication, Status: 401}
		}

		_, err := f.auth.Restore(context.Background())
		assertType(t, err, domain.TypeAuthentication)
		if f.auth.IsAuthenticated() || f.persist.saved != nil {
			t.Fatalf("rejected session was kept")
		}
	})

	t.Run("network failure keeps session", func(t *testing.T) {
		f := newFixture(t)
		f.persist.saved = &saved
		f.userAPI.profileFn = func(context.Context) (*domain.User, error) {
			return nil, &domain.AppError{Type: domain.TypeNetwork}
		}

		_, err := f.auth.Restore(context.Background())
		assertType(t, err, domain.TypeNetwork)
		if !f.auth.IsAuthenticated() {
			t.Fatalf("session dropped on a network failure")
		}
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		expired := saved
		expired.ExpiresAt = time.Now().Add(-time.Minute)
		f.persist.saved = &expired

		_, err := f.auth.Restore(context.Background())
		assertType(t, err, domain.TypeAuthentication)
		if f.persist.saved != nil {
			t.Fatalf("expired session not cleared")
		}
	})

	t.Run("unreadable", func(t *testing.T) {
		f := newFixture(t)
		f.persist.loadErr = errors.New("corrupt")

		user, err := f.auth.Restore(context.Background())
		if err != nil || user != nil {
			t.Fatalf("Restore = %v, %v; want nil, nil", user, err)
		}
		if f.persist.clears == 0 {
			t.Fatalf("unreadable session not discarded")
		}
	})
}

func TestUserService_AddBalance(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeClient, 10)
	f.authAPI.addBalanceFn = func(_ context.Context, in domain.AddBalanceInput) (*domain.BalanceUpdate, error) {
		return &domain.BalanceUpdate{Balance: 10 + in.Amount, Transaction: &domain.Transaction{ID: "t1", Amount: in.Amount}}, nil
	}

	upd, err := f.user.AddBalance(context.Background(), 20)
	if err != nil {
		t.Fatalf("AddBalance returned error: %v", err)
	}
	if upd.Balance != 30 {
		t.Fatalf("balance = %v", upd.Balance)
	}
	if cur, _ := f.auth.CurrentUser(); cur.Balance != 30 {
		t.Fatalf("store balance = %v", cur.Balance)
	}
	if f.txStore.History.Len() != 1 {
		t.Fatalf("top-up transaction not recorded")
	}
	if len(f.cache.patterns) == 0 {
		t.Fatalf("expected cache invalidation")
	}
}

func TestUserService_AddBalance_Rejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.user.AddBalance(context.Background(), 5)
	assertType(t, err, domain.TypeAuthentication)

	f.signIn(domain.UserTypeClient, 0)
	_, err = f.user.AddBalance(context.Background(), 0)
	assertType(t, err, domain.TypeValidation)

	f.signIn(domain.UserTypeProvider, 0)
	_, err = f.user.AddBalance(context.Background(), 5)
	assertType(t, err, domain.TypeAuthorization)

	if f.authAPI.calls != 0 {
		t.Fatalf("expected no requests, got %d", f.authAPI.calls)
	}
}

func TestUserService_RefreshBalance(t *testing.T) {
	f := newFixture(t)
	f.signIn(domain.UserTypeClient, 1)
	f.userAPI.balanceFn = func(context.Context) (float64, error) { return 7.25, nil }

	got, err := f.user.RefreshBalance(context.Background())
	if err != nil {
		t.Fatalf("RefreshBalance returned error: %v", err)
	}
	if got != 7.25 || f.persist.saved == nil || f.persist.saved.User.Balance != 7.25 {
		t.Fatalf("balance not applied and persisted: %v %+v", got, f.persist.saved)
	}
}
