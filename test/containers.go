package test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/joao-fontenele/giftorder/internal/telemetry"
)

type PostgresSetup struct {
	ConnStr string
	cleanup func()
}

func (p *PostgresSetup) Cleanup() {
	p.cleanup()
}

// SetupPostgres starts PostgreSQL and applies every migration.
func SetupPostgres(ctx context.Context, t *testing.T) *PostgresSetup {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("giftorder"),
		postgres.WithUsername("giftorder"),
		postgres.WithPassword("giftorder"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}

	return &PostgresSetup{ConnStr: connStr, cleanup: cleanup}
}

func runMigrations(connStr string) error {
	m, err := migrate.New(migrationsPath(), connStr)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func migrationsPath() string {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filename))
	return "file://" + filepath.Join(projectRoot, "migrations")
}

// OpenGiftDB opens the pool the services use, resolving tables in the gift
// schema.
func OpenGiftDB(ctx context.Context, t *testing.T, connStr string) *sql.DB {
	t.Helper()

	db, err := telemetry.OpenDB(ctx, connStr, "gift")
	if err != nil {
		t.Fatalf("failed to open gift database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func SetupKafka(ctx context.Context, t *testing.T) ([]string, func()) {
	t.Helper()

	container, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.8.0",
		kafka.WithClusterID("test-cluster"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}

	brokers, err := container.Brokers(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get kafka brokers: %v", err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers, cleanup
}

// SetupRedis starts a bare Redis and returns its host:port.
func SetupRedis(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	}

	return addr, cleanup
}

type fixture struct {
	MemberID int64
	OptionID int64
}

// seedCatalog inserts one member, one product priced price and one option
// with stock units.
func seedCatalog(ctx context.Context, t *testing.T, db *sql.DB, email string, point, price int64, stock int) fixture {
	t.Helper()

	var f fixture
	var categoryID, productID int64

	err := db.QueryRowContext(ctx,
		`INSERT INTO members (email, name, point) VALUES ($1, $2, $3) RETURNING id`,
		email, "tester", point).Scan(&f.MemberID)
	if err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}

	err = db.QueryRowContext(ctx,
		`INSERT INTO categories (name) VALUES ($1) RETURNING id`,
		"category-"+email).Scan(&categoryID)
	if err != nil {
		t.Fatalf("failed to seed category: %v", err)
	}

	err = db.QueryRowContext(ctx,
		`INSERT INTO products (name, price, category_id) VALUES ($1, $2, $3) RETURNING id`,
		"product", price, categoryID).Scan(&productID)
	if err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}

	err = db.QueryRowContext(ctx,
		`INSERT INTO options (product_id, name, quantity) VALUES ($1, $2, $3) RETURNING id`,
		productID, "default", stock).Scan(&f.OptionID)
	if err != nil {
		t.Fatalf("failed to seed option: %v", err)
	}

	return f
}

func balances(ctx context.Context, t *testing.T, db *sql.DB, f fixture) (int, int64) {
	t.Helper()

	var stock int
	var point int64
	if err := db.QueryRowContext(ctx, `SELECT quantity FROM options WHERE id = $1`, f.OptionID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT point FROM members WHERE id = $1`, f.MemberID).Scan(&point); err != nil {
		t.Fatalf("failed to read point: %v", err)
	}
	return stock, point
}
