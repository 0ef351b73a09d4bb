package store

import (
	"context"

	"go.uber.org/zap"
)

// SessionManager is the per-request unit-of-work gate. It is the only
// process-wide persistence state: initialized once at startup with the
// chosen backend factory.
type SessionManager struct {
	factory Factory
	log     *zap.Logger
}

func NewSessionManager(factory Factory, log *zap.Logger) *SessionManager {
	return &SessionManager{factory: factory, log: log}
}

// Do opens a session, runs fn, and commits on clean return or rolls back
// on error. The backend is closed in both cases; there is no
// partial-commit path.
func (m *SessionManager) Do(ctx context.Context, fn func(ctx context.Context, b Backend) error) error {
	b, err := m.factory.NewSession(ctx)
	if err != nil {
		return BackendErr("open session", err)
	}
	defer b.Close()

	if err := fn(ctx, b); err != nil {
		if rbErr := b.Rollback(ctx); rbErr != nil {
			m.log.Error("session rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := b.Commit(ctx); err != nil {
		return BackendErr("commit", err)
	}
	return nil
}

// Close releases the factory's shared resources at shutdown.
func (m *SessionManager) Close() {
	m.factory.Close()
}
