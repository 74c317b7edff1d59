package store

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelrates/internal/db"
	"parcelrates/internal/pricing"
)

func TestPostgresIntegration(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
		return
	}

	pool, err := db.NewPool(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}
	defer pool.Close()

	st := NewPostgres(pool)
	require.NoError(t, st.Migrate(context.Background()))

	_, err = pool.Exec(context.Background(), `
		INSERT INTO parcel_rates (ship_from, ship_to, box_5kg, box_10kg, courier, service, days_parcel)
		VALUES ('__it_from', '__it_to', '12.50', 'No Service', 'TestCourier', 'Classic', '3-5 days')
	`)
	require.NoError(t, err)
	defer pool.Exec(context.Background(), `DELETE FROM parcel_rates WHERE ship_from = '__it_from'`)

	rows, err := st.RatesByRoute(context.Background(), "__it_from", "__it_to")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	amount, ok := rows[0].Cells[pricing.KeyBox5Kg].Amount()
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("12.5")))
	assert.False(t, rows[0].Cells[pricing.KeyBox10Kg].Available())

	ov, err := st.CreateOverride(context.Background(), "__it_country", decimal.RequireFromString("42"), "receiver")
	require.NoError(t, err)
	defer st.DeleteOverride(context.Background(), ov.ID)

	found, err := st.OverrideByCountry(context.Background(), "__it_country", "receiver")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Price.Equal(decimal.RequireFromString("42")))
}
