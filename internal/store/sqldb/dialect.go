// Package sqldb implements store.Store over database/sql. Backends supply a
// Dialect describing their placeholder syntax, error codes and isolation.
package sqldb

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/cfgregistry/internal/store"
)

// Dialect captures what differs between SQL backends.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// IsUniqueViolation reports whether err came from a unique index.
	IsUniqueViolation func(err error) bool
	// IsSerializationFailure reports whether err aborted a serializable transaction.
	IsSerializationFailure func(err error) bool
	// TxOptions are used for every transaction started by RunInTransaction.
	TxOptions *sql.TxOptions
}

// DollarPlaceholder renders $1, $2, ...
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// QuestionPlaceholder renders ? for every parameter.
func QuestionPlaceholder(int) string { return "?" }

// rebind rewrites every ? in query into the dialect's placeholder.
// Queries in this package never contain a literal question mark.
func (d *Dialect) rebind(query string) string {
	if d.Placeholder == nil {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// translate maps backend errors onto the store sentinels.
func (d *Dialect) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case d.IsUniqueViolation != nil && d.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", store.ErrUniqueViolation, err)
	case d.IsSerializationFailure != nil && d.IsSerializationFailure(err):
		return fmt.Errorf("%w: %v", store.ErrSerializationFailure, err)
	}
	return err
}

// escapeLike escapes LIKE metacharacters using backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
