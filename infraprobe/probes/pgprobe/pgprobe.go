// Package pgprobe provides the PostgreSQL prober for infraprobe.
//
// Import this package to register the PostgreSQL prober factory:
//
//	import _ "github.com/BigKAA/infraprobe/infraprobe/probes/pgprobe"
package pgprobe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/BigKAA/infraprobe/infraprobe"
)

// DefaultQuery is the probe query.
const DefaultQuery = "SELECT 1"

func init() {
	infraprobe.RegisterProberFactory(infraprobe.KindPostgres, func() infraprobe.Prober { return New() })
}

// Option configures the Prober.
type Option func(*Prober)

// Prober runs one query against a PostgreSQL database and records the
// first column of the first row.
// Supports two modes:
//   - Standalone: opens a new connection per probe using the target credentials
//   - Pool: uses an existing *sql.DB connection pool
type Prober struct {
	db     *sql.DB // nil = standalone, non-nil = pool mode
	dsn    string  // custom DSN for standalone mode (overrides the target)
	query  string
	expect string // expected value of the first column, "" = any
}

// WithDB sets an existing connection pool for pool mode.
func WithDB(db *sql.DB) Option {
	return func(p *Prober) {
		p.db = db
	}
}

// WithDSN sets a custom DSN for standalone mode.
// If set, the target host, port and credentials are ignored.
func WithDSN(dsn string) Option {
	return func(p *Prober) {
		p.dsn = dsn
	}
}

// WithQuery sets the probe query and the value its first column must hold.
// An empty want accepts any value.
func WithQuery(query, want string) Option {
	return func(p *Prober) {
		p.query = query
		p.expect = want
	}
}

// New creates a new PostgreSQL prober with the given options.
func New(opts ...Option) *Prober {
	p := &Prober{
		query:  DefaultQuery,
		expect: "1",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DSN builds the connection URL for target. The password is escaped.
func DSN(target infraprobe.Target) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   target.Address(),
		Path:   "/" + target.Database,
	}
	if c := target.Credentials; c != nil {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	return u.String()
}

// Probe runs the query. In pool mode it uses the existing *sql.DB,
// in standalone mode it opens and closes a dedicated connection.
func (p *Prober) Probe(ctx context.Context, target infraprobe.Target) (infraprobe.Result, error) {
	if p.db != nil {
		return p.run(ctx, p.db, "pool")
	}

	dsn := p.dsn
	if dsn == "" {
		dsn = DSN(target)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return infraprobe.Result{}, fmt.Errorf("postgres open %s: %w", target.Host, err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	return p.run(ctx, db, target.Address())
}

func (p *Prober) run(ctx context.Context, db *sql.DB, where string) (infraprobe.Result, error) {
	var res infraprobe.Result

	var v any
	if err := db.QueryRowContext(ctx, p.query).Scan(&v); err != nil {
		return res, classifyError(err, where)
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	res = res.WithPayload("result", v)

	if p.expect != "" && fmt.Sprint(v) != p.expect {
		return res, &infraprobe.ClassifiedCheckError{
			Category: infraprobe.StatusUnhealthy,
			Detail:   "unexpected_result",
			Cause:    fmt.Errorf("postgres %s: %q returned %v, want %s: %w", where, p.query, v, p.expect, infraprobe.ErrUnhealthy),
		}
	}
	return res, nil
}

// classifyError wraps PostgreSQL errors with appropriate classification.
// Detects auth errors via SQLSTATE codes 28000/28P01.
func classifyError(err error, target string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "28000" || pgErr.Code == "28P01") {
		return authError(err, target)
	}
	msg := err.Error()
	if strings.Contains(msg, "28000") || strings.Contains(msg, "28P01") ||
		strings.Contains(msg, "password authentication failed") {
		return authError(err, target)
	}
	return fmt.Errorf("postgres query %s: %w", target, err)
}

func authError(err error, target string) error {
	return &infraprobe.ClassifiedCheckError{
		Category: infraprobe.StatusAuthError,
		Detail:   "auth_error",
		Cause:    fmt.Errorf("postgres %s: %w", target, err),
	}
}

// Kind returns the service kind for this prober.
func (p *Prober) Kind() infraprobe.ServiceKind {
	return infraprobe.KindPostgres
}
