package sqldb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEntry scans a single row into a model.ConfigurationEntry.
// The row must contain columns in the order defined by entryColumns.
func scanEntry(row scannable) (*model.ConfigurationEntry, error) {
	var e model.ConfigurationEntry
	var content, visibility sql.NullString

	err := row.Scan(
		&e.ID,
		&e.ProviderNID,
		&e.ProviderID,
		&e.ProviderVersion,
		&e.ProviderNamespace,
		&e.Target.Org,
		&e.Target.Space,
		&content,
		&visibility,
		&e.SpaceID,
		&e.ContentID,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(content, &e.Content); err != nil {
		return nil, fmt.Errorf("entry %d content: %w", e.ID, err)
	}
	if err := decodeJSON(visibility, &e.Visibility); err != nil {
		return nil, fmt.Errorf("entry %d visibility: %w", e.ID, err)
	}
	if e.Visibility == nil {
		e.Visibility = []model.Target{}
	}
	return &e, nil
}

// scanEntries scans all rows into a slice of entries.
func scanEntries(rows *sql.Rows) ([]*model.ConfigurationEntry, error) {
	defer rows.Close()
	var out []*model.ConfigurationEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// scanSubscription scans a single row into a model.ConfigurationSubscription.
// The row must contain columns in the order defined by subscriptionColumns.
func scanSubscription(row scannable) (*model.ConfigurationSubscription, error) {
	var s model.ConfigurationSubscription
	var filter, moduleContent, resourceProperties sql.NullString

	err := row.Scan(
		&s.ID,
		&s.MTAID,
		&s.SpaceID,
		&s.AppName,
		&s.ResourceName,
		&s.ModuleID,
		&s.ResourceID,
		&filter,
		&moduleContent,
		&resourceProperties,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(filter, &s.Filter); err != nil {
		return nil, fmt.Errorf("subscription %d filter: %w", s.ID, err)
	}
	if err := decodeJSON(moduleContent, &s.ModuleContent); err != nil {
		return nil, fmt.Errorf("subscription %d module content: %w", s.ID, err)
	}
	if err := decodeJSON(resourceProperties, &s.ResourceProperties); err != nil {
		return nil, fmt.Errorf("subscription %d resource properties: %w", s.ID, err)
	}
	return &s, nil
}

// scanSubscriptions scans all rows into a slice of subscriptions.
func scanSubscriptions(rows *sql.Rows) ([]*model.ConfigurationSubscription, error) {
	defer rows.Close()
	var out []*model.ConfigurationSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// decodeJSON unmarshals a TEXT column, leaving dst untouched for NULL or empty values.
func decodeJSON(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}

// encodeJSON renders v for storage in a TEXT column.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
