package ledger

import (
	"context"
	"fmt"
)

type migrator interface {
	Migrate(ctx context.Context, entities ...any) error
}

// Migrate creates or extends the tables of customers and invoices. It never
// drops data and is safe to run repeatedly.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	m, ok := a.backend.(migrator)
	if !ok {
		a.log.Info().Msg("store has no schema, nothing to migrate")
		return nil
	}
	a.log.Info().Msg("running database migrations")
	if err := m.Migrate(ctx, &Customer{}, &Invoice{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.log.Info().Msg("migrations completed")
	return nil
}
