package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/store"
)

// entryColumns is the column list used for SELECT statements on configuration_entry.
const entryColumns = `id, provider_nid, provider_id, provider_version, provider_namespace,
	target_org, target_space, content, visibility, space_id, content_id`

// subscriptionColumns is the column list used for SELECT statements on configuration_subscription.
const subscriptionColumns = `id, mta_id, space_id, app_name, resource_name,
	module_id, resource_id, filter, module_content, resource_properties`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func entryArgs(e *model.ConfigurationEntry) ([]any, error) {
	content, err := encodeJSON(e.Content)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	vis := e.Visibility
	if vis == nil {
		vis = []model.Target{}
	}
	visibility, err := encodeJSON(vis)
	if err != nil {
		return nil, fmt.Errorf("encode visibility: %w", err)
	}
	return []any{
		e.ProviderNID,
		e.ProviderID,
		e.ProviderVersion,
		e.ProviderNamespace,
		e.Target.Org,
		e.Target.Space,
		content,
		visibility,
		e.SpaceID,
		e.ContentID,
	}, nil
}

func queryCreateEntry(ctx context.Context, db executor, d *Dialect, e *model.ConfigurationEntry) error {
	args, err := entryArgs(e)
	if err != nil {
		return err
	}
	row := db.QueryRowContext(ctx, d.rebind(`
		INSERT INTO configuration_entry (
			provider_nid, provider_id, provider_version, provider_namespace,
			target_org, target_space, content, visibility, space_id, content_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`), args...)
	if err := row.Scan(&e.ID); err != nil {
		return fmt.Errorf("insert configuration entry: %w", d.translate(err))
	}
	return nil
}

func queryGetEntry(ctx context.Context, db executor, d *Dialect, id int64) (*model.ConfigurationEntry, error) {
	row := db.QueryRowContext(ctx, d.rebind(`SELECT `+entryColumns+` FROM configuration_entry WHERE id = ?`), id)
	return scanEntry(row)
}

func queryListEntries(ctx context.Context, db executor, d *Dialect, q store.EntryQuery) ([]*model.ConfigurationEntry, error) {
	var (
		whereClauses []string
		args         []any
	)
	where := func(clause string, vals ...any) {
		whereClauses = append(whereClauses, clause)
		args = append(args, vals...)
	}

	if q.ProviderNID != "" {
		where("provider_nid = ?", q.ProviderNID)
	}
	if q.ProviderID != "" {
		where("provider_id = ?", q.ProviderID)
	}
	if q.ProviderIDPrefix != "" {
		where(`provider_id LIKE ? ESCAPE '\'`, escapeLike(q.ProviderIDPrefix)+"%")
	}
	if q.ProviderNamespace != nil {
		where("provider_namespace = ?", *q.ProviderNamespace)
	}
	if q.Org != "" {
		where("(target_org = ? OR target_org = '*')", q.Org)
	}
	if q.Space != "" {
		where("(target_space = ? OR target_space = '*')", q.Space)
	}
	if q.SpaceID != "" {
		where("space_id = ?", q.SpaceID)
	}

	query := `SELECT ` + entryColumns + ` FROM configuration_entry`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	if q.OrderByID {
		query += " ORDER BY id"
	}

	rows, err := db.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list configuration entries: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("list configuration entries: %w", err)
	}
	if q.ProviderIDPrefix == "" {
		return entries, nil
	}
	// LIKE is case-insensitive on some backends.
	out := entries[:0]
	for _, e := range entries {
		if strings.HasPrefix(e.ProviderID, q.ProviderIDPrefix) {
			out = append(out, e)
		}
	}
	return out, nil
}

func queryUpdateEntry(ctx context.Context, db executor, d *Dialect, e *model.ConfigurationEntry) error {
	args, err := entryArgs(e)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, d.rebind(`
		UPDATE configuration_entry SET
			provider_nid = ?, provider_id = ?, provider_version = ?, provider_namespace = ?,
			target_org = ?, target_space = ?, content = ?, visibility = ?, space_id = ?, content_id = ?
		WHERE id = ?`), append(args, e.ID)...)
	if err != nil {
		return fmt.Errorf("update configuration entry: %w", d.translate(err))
	}
	return requireAffected(res)
}

func queryDeleteEntry(ctx context.Context, db executor, d *Dialect, id int64) error {
	res, err := db.ExecContext(ctx, d.rebind(`DELETE FROM configuration_entry WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func queryDeleteEntriesBySpace(ctx context.Context, db executor, d *Dialect, spaceID string) (int64, error) {
	res, err := db.ExecContext(ctx, d.rebind(`DELETE FROM configuration_entry WHERE space_id = ?`), spaceID)
	if err != nil {
		return 0, fmt.Errorf("delete configuration entries: %w", err)
	}
	return res.RowsAffected()
}

func subscriptionArgs(s *model.ConfigurationSubscription) ([]any, error) {
	filter, err := encodeJSON(s.Filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	moduleContent, err := encodeJSON(s.ModuleContent)
	if err != nil {
		return nil, fmt.Errorf("encode module content: %w", err)
	}
	resourceProperties, err := encodeJSON(s.ResourceProperties)
	if err != nil {
		return nil, fmt.Errorf("encode resource properties: %w", err)
	}
	return []any{
		s.MTAID,
		s.SpaceID,
		s.AppName,
		s.ResourceName,
		s.ModuleID,
		s.ResourceID,
		filter,
		moduleContent,
		resourceProperties,
	}, nil
}

func queryCreateSubscription(ctx context.Context, db executor, d *Dialect, s *model.ConfigurationSubscription) error {
	args, err := subscriptionArgs(s)
	if err != nil {
		return err
	}
	row := db.QueryRowContext(ctx, d.rebind(`
		INSERT INTO configuration_subscription (
			mta_id, space_id, app_name, resource_name, module_id, resource_id,
			filter, module_content, resource_properties
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`), args...)
	if err := row.Scan(&s.ID); err != nil {
		return fmt.Errorf("insert configuration subscription: %w", d.translate(err))
	}
	return nil
}

func queryGetSubscription(ctx context.Context, db executor, d *Dialect, id int64) (*model.ConfigurationSubscription, error) {
	row := db.QueryRowContext(ctx, d.rebind(`SELECT `+subscriptionColumns+` FROM configuration_subscription WHERE id = ?`), id)
	return scanSubscription(row)
}

func queryListSubscriptions(ctx context.Context, db executor, d *Dialect, q store.SubscriptionQuery) ([]*model.ConfigurationSubscription, error) {
	var (
		whereClauses []string
		args         []any
	)
	for _, f := range []struct{ column, value string }{
		{"mta_id", q.MTAID},
		{"space_id", q.SpaceID},
		{"app_name", q.AppName},
		{"resource_name", q.ResourceName},
	} {
		if f.value != "" {
			whereClauses = append(whereClauses, f.column+" = ?")
			args = append(args, f.value)
		}
	}

	query := `SELECT ` + subscriptionColumns + ` FROM configuration_subscription`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY id"

	rows, err := db.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list configuration subscriptions: %w", err)
	}
	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, fmt.Errorf("list configuration subscriptions: %w", err)
	}
	return subs, nil
}

func queryUpdateSubscription(ctx context.Context, db executor, d *Dialect, s *model.ConfigurationSubscription) error {
	args, err := subscriptionArgs(s)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, d.rebind(`
		UPDATE configuration_subscription SET
			mta_id = ?, space_id = ?, app_name = ?, resource_name = ?, module_id = ?, resource_id = ?,
			filter = ?, module_content = ?, resource_properties = ?
		WHERE id = ?`), append(args, s.ID)...)
	if err != nil {
		return fmt.Errorf("update configuration subscription: %w", d.translate(err))
	}
	return requireAffected(res)
}

func queryDeleteSubscription(ctx context.Context, db executor, d *Dialect, id int64) error {
	res, err := db.ExecContext(ctx, d.rebind(`DELETE FROM configuration_subscription WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func queryDeleteSubscriptionsBySpace(ctx context.Context, db executor, d *Dialect, spaceID string) (int64, error) {
	res, err := db.ExecContext(ctx, d.rebind(`DELETE FROM configuration_subscription WHERE space_id = ?`), spaceID)
	if err != nil {
		return 0, fmt.Errorf("delete configuration subscriptions: %w", err)
	}
	return res.RowsAffected()
}

// requireAffected returns sql.ErrNoRows when a statement touched nothing.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
