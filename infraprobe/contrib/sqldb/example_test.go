package sqldb_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/BigKAA/infraprobe/infraprobe"
	"github.com/BigKAA/infraprobe/infraprobe/contrib/sqldb"
)

// Probe PostgreSQL through an existing connection pool.
func ExampleFromDB() {
	db, mock, err := sqlmock.New()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer db.Close()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	h, err := infraprobe.New(
		infraprobe.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		sqldb.FromDB(db),
	)
	if err != nil {
		fmt.Println(err)
		return
	}

	target := infraprobe.Target{Name: "postgres", Kind: infraprobe.KindPostgres, Host: "pg-primary.db", Port: "5432"}
	res := h.Probe(context.Background(), target)
	fmt.Println(res.Status, res.Payload["result"])
	// Output: ok 1
}
