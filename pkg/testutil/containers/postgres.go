//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Schema holds every table the service persists to. Integration tests
// apply it to a fresh container so they run against the real DDL.
const Schema = `
CREATE TABLE IF NOT EXISTS rtps (
	resource_id      UUID PRIMARY KEY,
	notice_number    TEXT NOT NULL,
	amount_cents     BIGINT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	subject          TEXT NOT NULL DEFAULT '',
	expiry_date      TIMESTAMPTZ NOT NULL,
	payer_id         TEXT NOT NULL,
	payer_name       TEXT NOT NULL DEFAULT '',
	payee_id         TEXT NOT NULL,
	payee_name       TEXT NOT NULL DEFAULT '',
	saving_datetime  TIMESTAMPTZ NOT NULL,
	sp_debtor        TEXT NOT NULL,
	sp_creditor      TEXT NOT NULL,
	iban             TEXT NOT NULL DEFAULT '',
	pay_trx_ref      TEXT NOT NULL DEFAULT '',
	confirmed        BOOLEAN NOT NULL DEFAULT FALSE,
	operation_id     TEXT,
	event_dispatcher TEXT,
	status           TEXT NOT NULL,
	UNIQUE (operation_id, event_dispatcher)
);

CREATE TABLE IF NOT EXISTS rtp_events (
	resource_id   UUID NOT NULL REFERENCES rtps (resource_id),
	seq           INT NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL,
	prec_status   TEXT,
	trigger_event TEXT NOT NULL,
	PRIMARY KEY (resource_id, seq)
);

CREATE TABLE IF NOT EXISTS activations (
	id                      UUID PRIMARY KEY,
	fiscal_code             TEXT NOT NULL UNIQUE,
	service_provider_debtor TEXT NOT NULL,
	effective_date          TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// schema already applied.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts a new Postgres container and applies the
// schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("rtpbridge"),
		tcpostgres.WithUsername("rtpbridge"),
		tcpostgres.WithPassword("rtpbridge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(context.Background())
	})

	return &PostgresContainer{Container: container, URL: url, Pool: pool}
}
