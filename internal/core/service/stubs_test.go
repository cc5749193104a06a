package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/core/store"
)

type stubAuthAPI struct {
	registerFn   func(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error)
	loginFn      func(ctx context.Context, in domain.LoginInput) (*domain.AuthResult, error)
	logoutFn     func(ctx context.Context) error
	addBalanceFn func(ctx context.Context, in domain.AddBalanceInput) (*domain.BalanceUpdate, error)
	calls        int
}

func (s *stubAuthAPI) Register(ctx context.Context, in domain.RegisterInput) (*domain.AuthResult, error) {
	s.calls++
	return s.registerFn(ctx, in)
}

func (s *stubAuthAPI) Login(ctx context.Context, in domain.LoginInput) (*domain.AuthResult, error) {
	s.calls++
	return s.loginFn(ctx, in)
}

func (s *stubAuthAPI) Logout(ctx context.Context) error {
	s.calls++
	if s.logoutFn == nil {
		return nil
	}
	return s.logoutFn(ctx)
}

func (s *stubAuthAPI) AddBalance(ctx context.Context, in domain.AddBalanceInput) (*domain.BalanceUpdate, error) {
	s.calls++
	return s.addBalanceFn(ctx, in)
}

type stubUserAPI struct {
	profileFn func(ctx context.Context) (*domain.User, error)
	balanceFn func(ctx context.Context) (float64, error)
}

func (s *stubUserAPI) Profile(ctx context.Context) (*domain.User, error) { return s.profileFn(ctx) }

func (s *stubUserAPI) Balance(ctx context.Context) (float64, error) { return s.balanceFn(ctx) }

type stubServiceAPI struct {
	listFn      func(ctx context.Context, f domain.ServiceFilters) (*domain.Page[domain.Service], error)
	getFn       func(ctx context.Context, id string) (*domain.Service, error)
	mineFn      func(ctx context.Context) ([]domain.Service, error)
	createFn    func(ctx context.Context, in domain.ServiceInput) (*domain.Service, error)
	updateFn    func(ctx context.Context, id string, in domain.ServiceInput) (*domain.Service, error)
	deleteFn    func(ctx context.Context, id string) error
	setStatusFn func(ctx context.Context, id string, active bool) (*domain.Service, error)

	mu    sync.Mutex
	calls int
}

func (s *stubServiceAPI) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *stubServiceAPI) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubServiceAPI) List(ctx context.Context, f domain.ServiceFilters) (*domain.Page[domain.Service], error) {
	s.hit()
	return s.listFn(ctx, f)
}

func (s *stubServiceAPI) Get(ctx context.Context, id string) (*domain.Service, error) {
	s.hit()
	return s.getFn(ctx, id)
}

func (s *stubServiceAPI) Mine(ctx context.Context) ([]domain.Service, error) {
	s.hit()
	return s.mineFn(ctx)
}

func (s *stubServiceAPI) Create(ctx context.Context, in domain.ServiceInput) (*domain.Service, error) {
	s.hit()
	return s.createFn(ctx, in)
}

func (s *stubServiceAPI) Update(ctx context.Context, id string, in domain.ServiceInput) (*domain.Service, error) {
	s.hit()
	return s.updateFn(ctx, id, in)
}

func (s *stubServiceAPI) Delete(ctx context.Context, id string) error {
	s.hit()
	return s.deleteFn(ctx, id)
}

func (s *stubServiceAPI) SetStatus(ctx context.Context, id string, active bool) (*domain.Service, error) {
	s.hit()
	return s.setStatusFn(ctx, id, active)
}

type stubBookingAPI struct {
	createFn  func(ctx context.Context, in domain.CreateBookingInput) (*domain.BookingResult, error)
	mineFn    func(ctx context.Context) ([]domain.Booking, error)
	historyFn func(ctx context.Context, offset, limit int) (*domain.Page[domain.Booking], error)
	cancelFn  func(ctx context.Context, in domain.CancelBookingInput) (*domain.CancelResult, error)
	calls     int
}

func (s *stubBookingAPI) Create(ctx context.Context, in domain.CreateBookingInput) (*domain.BookingResult, error) {
	s.calls++
	return s.createFn(ctx, in)
}

func (s *stubBookingAPI) Mine(ctx context.Context) ([]domain.Booking, error) {
	s.calls++
	return s.mineFn(ctx)
}

func (s *stubBookingAPI) History(ctx context.Context, offset, limit int) (*domain.Page[domain.Booking], error) {
	s.calls++
	return s.historyFn(ctx, offset, limit)
}

func (s *stubBookingAPI) Cancel(ctx context.Context, in domain.CancelBookingInput) (*domain.CancelResult, error) {
	s.calls++
	return s.cancelFn(ctx, in)
}

type stubTransactionAPI struct {
	historyFn func(ctx context.Context, offset, limit int) (*domain.Page[domain.Transaction], error)
	getFn     func(ctx context.Context, id string) (*domain.Transaction, error)
}

func (s *stubTransactionAPI) History(ctx context.Context, offset, limit int) (*domain.Page[domain.Transaction], error) {
	return s.historyFn(ctx, offset, limit)
}

func (s *stubTransactionAPI) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.getFn(ctx, id)
}

type stubTokens struct {
	sess domain.Session
}

func (s *stubTokens) Set(token string) domain.Session {
	s.sess = domain.Session{Token: token}
	return s.sess
}

func (s *stubTokens) Restore(sess domain.Session) { s.sess = sess }

func (s *stubTokens) Token() string { return s.sess.Token }

func (s *stubTokens) Session() (domain.Session, bool) { return s.sess, s.sess.Token != "" }

func (s *stubTokens) Clear() { s.sess = domain.Session{} }

type stubPersister struct {
	saved   *domain.PersistedSession
	loadErr error
	saves   int
	clears  int
}

func (s *stubPersister) Load(context.Context) (*domain.PersistedSession, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.saved == nil {
		return nil, nil
	}
	cp := *s.saved
	return &cp, nil
}

func (s *stubPersister) Save(_ context.Context, sess domain.PersistedSession) error {
	s.saves++
	s.saved = &sess
	return nil
}

func (s *stubPersister) Clear(context.Context) error {
	s.clears++
	s.saved = nil
	return nil
}

type stubCache struct {
	patterns []string
	cleared  int
}

func (s *stubCache) InvalidatePattern(_ context.Context, pattern string) (int, error) {
	s.patterns = append(s.patterns, pattern)
	return 0, nil
}

func (s *stubCache) Clear(context.Context) error {
	s.cleared++
	return nil
}

// fixture wires every service against stubs.
type fixture struct {
	authAPI  *stubAuthAPI
	userAPI  *stubUserAPI
	services *stubServiceAPI
	bookings *stubBookingAPI
	ledger   *stubTransactionAPI
	tokens   *stubTokens
	persist  *stubPersister
	cache    *stubCache

	authStore    *store.AuthStore
	serviceStore *store.ServiceStore
	bookingStore *store.BookingStore
	txStore      *store.TransactionStore

	auth        *AuthService
	user        *UserService
	catalog     *CatalogService
	booking     *BookingService
	transaction *TransactionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		authAPI:      &stubAuthAPI{},
		userAPI:      &stubUserAPI{},
		services:     &stubServiceAPI{},
		bookings:     &stubBookingAPI{},
		ledger:       &stubTransactionAPI{},
		tokens:       &stubTokens{},
		persist:      &stubPersister{},
		cache:        &stubCache{},
		authStore:    store.NewAuthStore(),
		serviceStore: store.NewServiceStore(),
		bookingStore: store.NewBookingStore(),
		txStore:      store.NewTransactionStore(),
	}
	log := zerolog.Nop()
	f.auth = NewAuthService(f.authAPI, f.userAPI, f.tokens, f.persist, f.cache, f.authStore, log)
	f.user = NewUserService(f.userAPI, f.authAPI, f.auth, f.txStore, f.cache, log)
	f.catalog = NewCatalogService(f.services, f.auth, f.serviceStore, f.cache, log)
	f.booking = NewBookingService(f.bookings, f.services, f.auth, f.bookingStore, f.txStore, f.cache, log)
	f.transaction = NewTransactionService(f.ledger, f.auth, f.txStore, log)
	f.auth.OnSignOut(func() {
		f.serviceStore.Reset()
		f.bookingStore.Reset()
		f.txStore.Reset()
	})
	return f
}

// signIn installs a session without going through Login.
func (f *fixture) signIn(userType domain.UserType, balance float64) domain.User {
	user := domain.User{ID: "u1", FullName: "Ana Lima", Email: "ana@example.com", UserType: userType, Balance: balance, IsActive: true}
	sess := f.tokens.Set("tok-" + string(userType))
	f.authStore.SetAuthenticated(user, sess)
	return user
}

func assertType(t *testing.T, err error, want domain.ErrorType) *domain.AppError {
	t.Helper()
	ae, ok := domain.AsAppError(err)
	if !ok {
		t.Fatalf("expected *AppError of type %s, got %v", want, err)
	}
	if ae.Type != want {
		t.Fatalf("error type = %s, want %s (%v)", ae.Type, want, err)
	}
	return ae
}

func ptr[T any](v T) *T { return &v }
