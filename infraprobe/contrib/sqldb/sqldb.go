// Package sqldb provides infraprobe integration with *sql.DB.
// It allows probing PostgreSQL through an existing connection pool.
package sqldb

import (
	"database/sql"

	"github.com/BigKAA/infraprobe/infraprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/pgprobe"
)

// FromDB creates an Option that makes the Harness probe PostgreSQL targets
// through db instead of opening a connection per probe. The target still
// supplies the labels used in logs and metrics.
func FromDB(db *sql.DB, opts ...pgprobe.Option) infraprobe.Option {
	allOpts := make([]pgprobe.Option, 0, len(opts)+1)
	allOpts = append(allOpts, pgprobe.WithDB(db))
	allOpts = append(allOpts, opts...)
	return infraprobe.WithProber(pgprobe.New(allOpts...))
}
