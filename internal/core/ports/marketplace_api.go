package ports

import (
	"context"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// AuthAPI is the remote authentication resource.
type AuthAPI interface {
	Register(ctx context.Context, input domain.RegisterInput) (*domain.AuthResult, error)
	Login(ctx context.Context, input domain.LoginInput) (*domain.AuthResult, error)
	Logout(ctx context.Context) error
	AddBalance(ctx context.Context, input domain.AddBalanceInput) (*domain.BalanceUpdate, error)
}

// UserAPI is the remote profile resource of the signed-in user.
type UserAPI interface {
	Profile(ctx context.Context) (*domain.User, error)
	Balance(ctx context.Context) (float64, error)
}

// ServiceAPI is the remote catalog resource.
type ServiceAPI interface {
	List(ctx context.Context, filters domain.ServiceFilters) (*domain.Page[domain.Service], error)
	Get(ctx context.Context, id string) (*domain.Service, error)
	// Mine lists the signed-in provider's own services.
	Mine(ctx context.Context) ([]domain.Service, error)
	Create(ctx context.Context, input domain.ServiceInput) (*domain.Service, error)
	Update(ctx context.Context, id string, input domain.ServiceInput) (*domain.Service, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, active bool) (*domain.Service, error)
}

// BookingAPI is the remote booking resource.
type BookingAPI interface {
	Create(ctx context.Context, input domain.CreateBookingInput) (*domain.BookingResult, error)
	Mine(ctx context.Context) ([]domain.Booking, error)
	History(ctx context.Context, offset, limit int) (*domain.Page[domain.Booking], error)
	Cancel(ctx context.Context, input domain.CancelBookingInput) (*domain.CancelResult, error)
}

// TransactionAPI is the remote ledger resource. Entries are read-only.
type TransactionAPI interface {
	History(ctx context.Context, offset, limit int) (*domain.Page[domain.Transaction], error)
	Get(ctx context.Context, id string) (*domain.Transaction, error)
}

// HealthAPI probes the remote server.
type HealthAPI interface {
	Check(ctx context.Context) error
}
