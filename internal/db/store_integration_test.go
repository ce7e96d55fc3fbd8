//go:build integration

package db_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/riskd/internal/db"
	"github.com/quantfolio/riskd/internal/db/testhelpers"
	"github.com/quantfolio/riskd/internal/risk"
)

// TestPriceStoreWithTestcontainers exercises the price store against a
// real PostgreSQL instance.
func TestPriceStoreWithTestcontainers(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	points := func(n int, start float64) []risk.PricePoint {
		out := make([]risk.PricePoint, n)
		for i := 0; i < n; i++ {
			out[i] = risk.PricePoint{
				Date:  base.AddDate(0, 0, i).Format("2006-01-02"),
				Close: start + float64(i),
			}
		}
		return out
	}

	t.Run("UpsertAndReadBack", func(t *testing.T) {
		err := tc.DB.UpsertDailyPrices(ctx, "SPY", points(35, 470))
		require.NoError(t, err)

		closes, err := tc.DB.DailyCloses(ctx, "SPY", 252)
		require.NoError(t, err)
		require.Len(t, closes, 35)
		assert.Equal(t, "2024-01-01", closes[0].Date)
		assert.Equal(t, "2024-02-04", closes[34].Date)
		for i := 1; i < len(closes); i++ {
			assert.Less(t, closes[i-1].Date, closes[i].Date)
		}
	})

	t.Run("UpsertOverwritesSameDay", func(t *testing.T) {
		err := tc.DB.UpsertDailyPrices(ctx, "AGG", points(5, 100))
		require.NoError(t, err)

		err = tc.DB.UpsertDailyPrices(ctx, "AGG", []risk.PricePoint{
			{Date: "2024-01-03", Close: 250.0},
		})
		require.NoError(t, err)

		closes, err := tc.DB.DailyCloses(ctx, "AGG", 252)
		require.NoError(t, err)
		require.Len(t, closes, 5)
		assert.InDelta(t, 250.0, closes[2].Close, 1e-9)
	})

	t.Run("LimitKeepsMostRecentDays", func(t *testing.T) {
		err := tc.DB.UpsertDailyPrices(ctx, "QQQ", points(30, 380))
		require.NoError(t, err)

		closes, err := tc.DB.DailyCloses(ctx, "QQQ", 10)
		require.NoError(t, err)
		require.Len(t, closes, 10)
		assert.Equal(t, "2024-01-21", closes[0].Date)
		assert.Equal(t, "2024-01-30", closes[9].Date)
	})

	t.Run("UnknownTickerYieldsErrNoPrices", func(t *testing.T) {
		_, err := tc.DB.DailyCloses(ctx, "ZZZZ", 252)
		assert.ErrorIs(t, err, db.ErrNoPrices)
	})

	t.Run("LatestDayTracksNewestRow", func(t *testing.T) {
		err := tc.DB.UpsertDailyPrices(ctx, "IWM", points(3, 200))
		require.NoError(t, err)

		day, err := tc.DB.LatestDay(ctx, "IWM")
		require.NoError(t, err)
		assert.Equal(t, "2024-01-03", day.Format("2006-01-02"))

		empty, err := tc.DB.LatestDay(ctx, "ZZZZ")
		require.NoError(t, err)
		assert.True(t, empty.IsZero())
	})

	t.Run("StatsSummarizeStoredRange", func(t *testing.T) {
		err := tc.DB.UpsertDailyPrices(ctx, "EFA", points(7, 70))
		require.NoError(t, err)

		stats, err := tc.DB.Stats(ctx, "EFA")
		require.NoError(t, err)
		assert.Equal(t, 7, stats.Days)
		assert.Equal(t, "2024-01-01", stats.Earliest)
		assert.Equal(t, "2024-01-07", stats.Latest)

		emptyStats, err := tc.DB.Stats(ctx, "ZZZZ")
		require.NoError(t, err)
		assert.Equal(t, 0, emptyStats.Days)
		assert.Empty(t, emptyStats.Earliest)
	})
}

// TestAssetRegistryWithTestcontainers exercises asset CRUD against a real
// PostgreSQL instance.
func TestAssetRegistryWithTestcontainers(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := testhelpers.SetupTestDatabase(t)
	err := tc.ApplyMigrations("../../migrations")
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("UpsertListAndGet", func(t *testing.T) {
		for i, ticker := range []string{"SPY", "AGG", "GLD"} {
			err := tc.DB.UpsertAsset(ctx, &db.Asset{
				Ticker: ticker,
				Name:   fmt.Sprintf("Asset %d", i),
				Weight: 0.2 + 0.1*float64(i),
			})
			require.NoError(t, err)
		}

		assets, err := tc.DB.ListAssets(ctx)
		require.NoError(t, err)
		require.Len(t, assets, 3)
		assert.Equal(t, "AGG", assets[0].Ticker)
		assert.Equal(t, "GLD", assets[1].Ticker)
		assert.Equal(t, "SPY", assets[2].Ticker)

		spy, err := tc.DB.GetAsset(ctx, "SPY")
		require.NoError(t, err)
		assert.InDelta(t, 0.2, spy.Weight, 1e-9)
		assert.False(t, spy.CreatedAt.IsZero())
	})

	t.Run("UpdateKeepsCreationTime", func(t *testing.T) {
		before, err := tc.DB.GetAsset(ctx, "SPY")
		require.NoError(t, err)

		err = tc.DB.UpsertAsset(ctx, &db.Asset{
			Ticker:    "SPY",
			Name:      "S&P 500 ETF",
			Weight:    0.5,
			CreatedAt: before.CreatedAt,
		})
		require.NoError(t, err)

		after, err := tc.DB.GetAsset(ctx, "SPY")
		require.NoError(t, err)
		assert.InDelta(t, 0.5, after.Weight, 1e-9)
		assert.WithinDuration(t, before.CreatedAt, after.CreatedAt, time.Second)
	})

	t.Run("DeleteRemovesAsset", func(t *testing.T) {
		err := tc.DB.DeleteAsset(ctx, "GLD")
		require.NoError(t, err)

		_, err = tc.DB.GetAsset(ctx, "GLD")
		assert.ErrorIs(t, err, db.ErrAssetNotFound)

		err = tc.DB.DeleteAsset(ctx, "GLD")
		assert.ErrorIs(t, err, db.ErrAssetNotFound)
	})
}
