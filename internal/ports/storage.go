package ports

import (
	"context"

	"github.com/jdamico/rebalancer/internal/domain"
)

// PortfolioStore persists one portfolio record per account.
type PortfolioStore interface {
	// GetPortfolio loads the record for one account.
	// Returns domain.ErrNoPortfolio if none exists.
	GetPortfolio(ctx context.Context, accountID string) (*domain.Portfolio, error)

	// GetAllPortfolios loads every stored portfolio.
	GetAllPortfolios(ctx context.Context) ([]*domain.Portfolio, error)

	// StorePortfolio upserts the full record keyed by account ID.
	StorePortfolio(ctx context.Context, p *domain.Portfolio) error

	// Close releases the underlying database handle.
	Close() error
}

// SecretStore holds credentials and rotating tokens.
type SecretStore interface {
	GetSecret(ctx context.Context, key string) (string, error)
	PutSecret(ctx context.Context, key, value string) error
}
