//go:build integration

package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/kholm/healthpipe/internal/record"
)

func setupPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("healthpipe"),
		postgrescontainer.WithUsername("healthpipe"),
		postgrescontainer.WithPassword("healthpipe"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		pool, err = pgxpool.New(ctx, connStr)
		if err != nil {
			return false
		}
		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			return false
		}
		return true
	}, 30*time.Second, time.Second)
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, CreateTables(ctx, pool))
	require.NoError(t, VerifyNaturalKeys(ctx, pool))
	return pool
}

func TestLoadBatchIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	loader := NewLoader(pool, nil)

	start := time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC)
	batch := []record.Record{
		record.QuantityRecord{Type: "HKQuantityTypeIdentifierStepCount", StartTime: start, EndTime: start.Add(5 * time.Minute), Value: 120, Unit: "count", SourceName: "Apple Health"},
		record.QuantityRecord{Type: "HKQuantityTypeIdentifierStepCount", StartTime: start.Add(5 * time.Minute), EndTime: start.Add(10 * time.Minute), Value: 88, Unit: "count", SourceName: "Apple Health"},
	}

	first, err := loader.LoadBatch(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 2, first.Inserted)
	require.Zero(t, first.Duplicates)

	second, err := loader.LoadBatch(ctx, batch)
	require.NoError(t, err)
	require.Zero(t, second.Inserted)
	require.Equal(t, 2, second.Duplicates)

	var rows int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM health_records`).Scan(&rows))
	require.EqualValues(t, 2, rows)
}

func TestLoadBatchZoneEquivalentDuplicate(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	loader := NewLoader(pool, nil)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	utc := time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC)
	local := utc.In(ny)

	_, err = loader.LoadBatch(ctx, []record.Record{
		record.GlucoseReading{ReadingTime: utc, Value: 96, Unit: "mg/dL", Source: "GlucoseMeter"},
	})
	require.NoError(t, err)

	res, err := loader.LoadBatch(ctx, []record.Record{
		record.GlucoseReading{ReadingTime: local, Value: 96, Unit: "mg/dL", Source: "GlucoseMeter"},
	})
	require.NoError(t, err)
	require.Zero(t, res.Inserted, "same instant in a different zone must be a duplicate")
	require.Equal(t, 1, res.Duplicates)
}

func TestLoadBatchPerRecordRetry(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	loader := NewLoader(pool, nil)

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	good := record.FoodLogEntry{LogDate: day, FoodItem: "Oatmeal", MealType: "Breakfast", Source: "LoseIt"}
	// meal_type is varchar(50); an oversized value fails the insert for this
	// record only.
	bad := record.FoodLogEntry{LogDate: day, FoodItem: "Mystery", MealType: strings.Repeat("x", 300), Source: "LoseIt"}

	res, err := loader.LoadBatch(ctx, []record.Record{good, bad})
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.Equal(t, 1, res.Failed)

	var rows int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM food_log`).Scan(&rows))
	require.EqualValues(t, 1, rows, "the failing record must not block the good one")
}

func TestTableCounts(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)

	counts, err := TableCounts(ctx, pool)
	require.NoError(t, err)
	require.Len(t, counts, 6)
	for _, c := range counts {
		require.Zero(t, c.Rows, "fresh schema should be empty: %s", c.Table)
	}
}
