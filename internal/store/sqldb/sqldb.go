package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/store"
)

// DB implements store.Store over a *sql.DB.
type DB struct {
	db      *sql.DB
	dialect *Dialect
}

// Compile-time check that DB implements store.Store.
var _ store.Store = (*DB)(nil)

// New wraps an open database. The caller is expected to have applied the
// schema already.
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: &dialect}
}

// Dialect returns the dialect name, e.g. "postgres".
func (s *DB) Dialect() string {
	return s.dialect.Name
}

// Ping verifies the database is reachable.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) CreateEntry(ctx context.Context, entry *model.ConfigurationEntry) error {
	return queryCreateEntry(ctx, s.db, s.dialect, entry)
}

func (s *DB) GetEntry(ctx context.Context, id int64) (*model.ConfigurationEntry, error) {
	return queryGetEntry(ctx, s.db, s.dialect, id)
}

func (s *DB) ListEntries(ctx context.Context, q store.EntryQuery) ([]*model.ConfigurationEntry, error) {
	return queryListEntries(ctx, s.db, s.dialect, q)
}

func (s *DB) UpdateEntry(ctx context.Context, entry *model.ConfigurationEntry) error {
	return queryUpdateEntry(ctx, s.db, s.dialect, entry)
}

func (s *DB) DeleteEntry(ctx context.Context, id int64) error {
	return queryDeleteEntry(ctx, s.db, s.dialect, id)
}

func (s *DB) DeleteEntriesBySpace(ctx context.Context, spaceID string) (int64, error) {
	return queryDeleteEntriesBySpace(ctx, s.db, s.dialect, spaceID)
}

func (s *DB) CreateSubscription(ctx context.Context, sub *model.ConfigurationSubscription) error {
	return queryCreateSubscription(ctx, s.db, s.dialect, sub)
}

func (s *DB) GetSubscription(ctx context.Context, id int64) (*model.ConfigurationSubscription, error) {
	return queryGetSubscription(ctx, s.db, s.dialect, id)
}

func (s *DB) ListSubscriptions(ctx context.Context, q store.SubscriptionQuery) ([]*model.ConfigurationSubscription, error) {
	return queryListSubscriptions(ctx, s.db, s.dialect, q)
}

func (s *DB) UpdateSubscription(ctx context.Context, sub *model.ConfigurationSubscription) error {
	return queryUpdateSubscription(ctx, s.db, s.dialect, sub)
}

func (s *DB) DeleteSubscription(ctx context.Context, id int64) error {
	return queryDeleteSubscription(ctx, s.db, s.dialect, id)
}

func (s *DB) DeleteSubscriptionsBySpace(ctx context.Context, spaceID string) (int64, error) {
	return queryDeleteSubscriptionsBySpace(ctx, s.db, s.dialect, spaceID)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *DB) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", s.dialect.translate(err))
	}

	txS := &txStore{tx: tx, dialect: s.dialect}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", s.dialect.translate(err))
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx      *sql.Tx
	dialect *Dialect
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateEntry(ctx context.Context, entry *model.ConfigurationEntry) error {
	return queryCreateEntry(ctx, s.tx, s.dialect, entry)
}

func (s *txStore) GetEntry(ctx context.Context, id int64) (*model.ConfigurationEntry, error) {
	return queryGetEntry(ctx, s.tx, s.dialect, id)
}

func (s *txStore) ListEntries(ctx context.Context, q store.EntryQuery) ([]*model.ConfigurationEntry, error) {
	return queryListEntries(ctx, s.tx, s.dialect, q)
}

func (s *txStore) UpdateEntry(ctx context.Context, entry *model.ConfigurationEntry) error {
	return queryUpdateEntry(ctx, s.tx, s.dialect, entry)
}

func (s *txStore) DeleteEntry(ctx context.Context, id int64) error {
	return queryDeleteEntry(ctx, s.tx, s.dialect, id)
}

func (s *txStore) DeleteEntriesBySpace(ctx context.Context, spaceID string) (int64, error) {
	return queryDeleteEntriesBySpace(ctx, s.tx, s.dialect, spaceID)
}

func (s *txStore) CreateSubscription(ctx context.Context, sub *model.ConfigurationSubscription) error {
	return queryCreateSubscription(ctx, s.tx, s.dialect, sub)
}

func (s *txStore) GetSubscription(ctx context.Context, id int64) (*model.ConfigurationSubscription, error) {
	return queryGetSubscription(ctx, s.tx, s.dialect, id)
}

func (s *txStore) ListSubscriptions(ctx context.Context, q store.SubscriptionQuery) ([]*model.ConfigurationSubscription, error) {
	return queryListSubscriptions(ctx, s.tx, s.dialect, q)
}

func (s *txStore) UpdateSubscription(ctx context.Context, sub *model.ConfigurationSubscription) error {
	return queryUpdateSubscription(ctx, s.tx, s.dialect, sub)
}

func (s *txStore) DeleteSubscription(ctx context.Context, id int64) error {
	return queryDeleteSubscription(ctx, s.tx, s.dialect, id)
}

func (s *txStore) DeleteSubscriptionsBySpace(ctx context.Context, spaceID string) (int64, error) {
	return queryDeleteSubscriptionsBySpace(ctx, s.tx, s.dialect, spaceID)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Ping is a no-op inside a transaction.
func (s *txStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
