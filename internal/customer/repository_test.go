package customer_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/customer"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	dbHost := os.Getenv("DB_HOST_TEST")
	if dbHost == "" {
		// Repository tests need a migrated Postgres; unit tests still run.
		os.Exit(m.Run())
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=customer_service",
		dbHost,
		envOr("DB_PORT_TEST", "5432"),
		envOr("DB_USER_TEST", "postgres"),
		envOr("DB_PASSWORD_TEST", "123456"),
		envOr("DB_NAME_TEST", "ecommerce_db"),
		envOr("DB_SSLMODE_TEST", "disable"),
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse test database config")
	}
	poolConfig.MaxConns = 5

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	testDB, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err == nil {
		err = testDB.Ping(ctx)
	}
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("db_host", dbHost).Msg("Failed to connect to test database")
	}

	exitCode := m.Run()
	testDB.Close()
	os.Exit(exitCode)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("DB_HOST_TEST not set")
	}
	t.Cleanup(func() {
		_, err := testDB.Exec(context.Background(), "TRUNCATE TABLE customer_service.customers CASCADE")
		require.NoError(t, err, "failed to truncate customers table")
	})
}

func TestCustomerRepository_CreateAndGet(t *testing.T) {
	requireDB(t)
	repo := customer.NewRepository(testDB)
	ctx := context.Background()

	c := &customer.Customer{Name: "Jane Doe", Email: "jane.repo@example.com", Phone: "555-0100", Address: "1 Main St"}
	id, err := repo.Create(ctx, c)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	byID, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, c.Email, byID.Email)

	byEmail, err := repo.GetByEmail(ctx, c.Email)
	require.NoError(t, err)
	require.Equal(t, id, byEmail.ID)
}

func TestCustomerRepository_Create_DuplicateEmail(t *testing.T) {
	requireDB(t)
	repo := customer.NewRepository(testDB)
	ctx := context.Background()

	_, err := repo.Create(ctx, &customer.Customer{Name: "First", Email: "dup@example.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &customer.Customer{Name: "Second", Email: "dup@example.com"})
	require.ErrorIs(t, err, customer.ErrEmailExists)
}

func TestCustomerRepository_UpdateAndDelete(t *testing.T) {
	requireDB(t)
	repo := customer.NewRepository(testDB)
	ctx := context.Background()

	c := &customer.Customer{Name: "Jane", Email: "update@example.com"}
	_, err := repo.Create(ctx, c)
	require.NoError(t, err)

	c.Name = "Jane Updated"
	require.NoError(t, repo.Update(ctx, c))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Jane Updated", got.Name)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, c.ID))
	require.ErrorIs(t, repo.Delete(ctx, c.ID), customer.ErrNotFound)

	_, err = repo.GetByID(ctx, c.ID)
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestCustomerRepository_Update_NotFound(t *testing.T) {
	requireDB(t)
	repo := customer.NewRepository(testDB)

	err := repo.Update(context.Background(), &customer.Customer{ID: uuid.Must(uuid.NewV4()), Name: "Ghost", Email: "ghost@example.com"})
	require.ErrorIs(t, err, customer.ErrNotFound)
}
