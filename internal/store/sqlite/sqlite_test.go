package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/store"
	"github.com/alfredjeanlab/cfgregistry/internal/store/sqldb"
)

// setupTestDB creates a new database file and returns the store for testing.
// The database is closed when the test completes.
func setupTestDB(t *testing.T) *sqldb.DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { db.Close() })
	return db
}

func newEntry(providerID, version string, target model.Target) *model.ConfigurationEntry {
	return &model.ConfigurationEntry{
		ProviderNID:     model.ProviderNIDMTA,
		ProviderID:      providerID,
		ProviderVersion: version,
		Target:          target,
		Content:         model.MustContent(map[string]any{"url": "x"}),
		Visibility:      model.DefaultVisibility(target),
		SpaceID:         "guid-" + target.Space,
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err, "reopening must not re-apply migrations")
	require.NoError(t, db.Close())
}

func TestNew_Memory(t *testing.T) {
	db, err := New(MemoryPath)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping(context.Background()))
	require.Equal(t, "sqlite", db.Dialect())
}

func TestEntry_CRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	target := model.Target{Org: "org-1", Space: "space-1"}

	e := newEntry("m:db", "1.0.0", target)
	require.NoError(t, db.CreateEntry(ctx, e))
	require.Greater(t, e.ID, int64(0), "Entry should have ID assigned after insert")

	found, err := db.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, e.ProviderID, found.ProviderID)
	require.Equal(t, e.Target, found.Target)
	require.True(t, e.Content.Equal(found.Content))
	require.Equal(t, e.Visibility, found.Visibility)

	found.ProviderVersion = "1.1.0"
	require.NoError(t, db.UpdateEntry(ctx, found))
	again, err := db.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "1.1.0", again.ProviderVersion)

	require.NoError(t, db.DeleteEntry(ctx, e.ID))
	_, err = db.GetEntry(ctx, e.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.ErrorIs(t, db.DeleteEntry(ctx, e.ID), sql.ErrNoRows)
}

func TestEntry_IDsNotReused(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	target := model.Target{Org: "o", Space: "s"}

	first := newEntry("m:a", "1.0.0", target)
	require.NoError(t, db.CreateEntry(ctx, first))
	require.NoError(t, db.DeleteEntry(ctx, first.ID))

	second := newEntry("m:a", "1.0.0", target)
	require.NoError(t, db.CreateEntry(ctx, second))
	require.Greater(t, second.ID, first.ID)
}

func TestEntry_UniqueViolation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	target := model.Target{Org: "org-1", Space: "space-1"}

	require.NoError(t, db.CreateEntry(ctx, newEntry("m:db", "1.0.0", target)))
	err := db.CreateEntry(ctx, newEntry("m:db", "1.0.0", target))
	require.ErrorIs(t, err, store.ErrUniqueViolation)

	other := newEntry("m:db", "2.0.0", target)
	require.NoError(t, db.CreateEntry(ctx, other))
	other.ProviderVersion = "1.0.0"
	require.ErrorIs(t, db.UpdateEntry(ctx, other), store.ErrUniqueViolation)
}

func TestListEntries_Predicates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, e := range []*model.ConfigurationEntry{
		newEntry("m:db", "1.0.0", model.Target{Org: "org-1", Space: "space-1"}),
		newEntry("m:cache", "1.0.0", model.Target{Org: "org-1", Space: "space-2"}),
		newEntry("M:db", "1.0.0", model.Target{Org: "org-1", Space: "space-1"}),
		newEntry("m2:db", "1.0.0", model.Target{Org: "*", Space: "space-1"}),
	} {
		require.NoError(t, db.CreateEntry(ctx, e))
	}

	got, err := db.ListEntries(ctx, store.EntryQuery{ProviderIDPrefix: "m:", OrderByID: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "m:db", got[0].ProviderID)
	require.Equal(t, "m:cache", got[1].ProviderID)

	got, err = db.ListEntries(ctx, store.EntryQuery{Org: "org-9", Space: "space-1"})
	require.NoError(t, err)
	require.Len(t, got, 1, "a stored wildcard org matches any org")
	require.Equal(t, "m2:db", got[0].ProviderID)

	got, err = db.ListEntries(ctx, store.EntryQuery{SpaceID: "guid-space-2"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	blue := "blue"
	got, err = db.ListEntries(ctx, store.EntryQuery{ProviderNamespace: &blue})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSubscription_CRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	sub := &model.ConfigurationSubscription{
		MTAID:        "consumer",
		SpaceID:      "guid-2",
		AppName:      "web",
		ResourceName: "db",
		Filter: model.ConfigurationFilter{
			MTAID:           "m",
			ProviderVersion: ">=1.0.0",
			TargetSpace:     &model.Target{Org: "org-1", Space: "*"},
		},
		ResourceProperties: model.MustContent(map[string]any{"optional": false}),
	}
	require.NoError(t, db.CreateSubscription(ctx, sub))
	require.Greater(t, sub.ID, int64(0))

	dup := *sub
	dup.ID = 0
	require.ErrorIs(t, db.CreateSubscription(ctx, &dup), store.ErrUniqueViolation)

	subs, err := db.ListSubscriptions(ctx, store.SubscriptionQuery{SpaceID: "guid-2"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, sub.Filter.ProviderVersion, subs[0].Filter.ProviderVersion)
	require.Equal(t, *sub.Filter.TargetSpace, *subs[0].Filter.TargetSpace)
	require.True(t, sub.ResourceProperties.Equal(subs[0].ResourceProperties))

	sub.AppName = "web-2"
	require.NoError(t, db.UpdateSubscription(ctx, sub))
	found, err := db.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, "web-2", found.AppName)

	n, err := db.DeleteSubscriptionsBySpace(ctx, "guid-2")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.ErrorIs(t, db.DeleteSubscription(ctx, sub.ID), sql.ErrNoRows)
}

func TestRunInTransaction_Rollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := db.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateEntry(ctx, newEntry("m:db", "1.0.0", model.Target{Org: "o", Space: "s"})); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	got, err := db.ListEntries(ctx, store.EntryQuery{})
	require.NoError(t, err)
	require.Empty(t, got, "rolled back insert must not be visible")
}
