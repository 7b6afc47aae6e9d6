package clickhouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	ch "github.com/ClickHouse/clickhouse-go/v2"
)

func TestOptionsMapping(t *testing.T) {
	cfg := defaultConfig()
	for _, o := range []ClientOption{
		WithHost("ch.local"), WithPort(8123), WithDatabase("pricer"),
		WithCredentials("svc", "secret"), WithHTTP(true),
		WithAsyncInsert(true, true), WithMaxExecutionTime(30 * time.Second),
		WithTimeouts(0, 3*time.Second),
	} {
		o(cfg)
	}
	opts := chOptions(cfg)

	if opts.Protocol != ch.HTTP {
		t.Fatalf("protocol = %v", opts.Protocol)
	}
	if len(opts.Addr) != 1 || opts.Addr[0] != "ch.local:8123" {
		t.Fatalf("addr = %v", opts.Addr)
	}
	if opts.Auth.Database != "pricer" || opts.Auth.Username != "svc" || opts.Auth.Password != "secret" {
		t.Fatalf("auth = %+v", opts.Auth)
	}
	if opts.Settings["max_execution_time"] != 30 || opts.Settings["async_insert"] != 1 || opts.Settings["wait_for_async_insert"] != 1 {
		t.Fatalf("settings = %v", opts.Settings)
	}
	if opts.DialTimeout != 5*time.Second || opts.ReadTimeout != 3*time.Second {
		t.Fatalf("timeouts = %v / %v", opts.DialTimeout, opts.ReadTimeout)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}

func TestInitSchemaStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	c := NewFromDB(db, "pricer")
	defer c.Close()

	mock.ExpectExec("CREATE DATABASE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("syntax"))

	err = c.InitSchema(context.Background(), []string{
		"CREATE DATABASE IF NOT EXISTS pricer",
		"CREATE TABLE broken",
		"CREATE TABLE never_run",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
