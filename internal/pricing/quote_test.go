package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRates struct {
	rows []RateRow
	err  error
}

func (s stubRates) RatesByRoute(_ context.Context, _, _ string) ([]RateRow, error) {
	return s.rows, s.err
}

type stubOverrides struct {
	ov  *Override
	err error
}

func (s stubOverrides) OverrideByCountry(_ context.Context, _, _ string) (*Override, error) {
	return s.ov, s.err
}

func cellsFromRaw(raw map[string]string) map[string]Cell {
	out := make(map[string]Cell, len(raw))
	for k, v := range raw {
		v := v
		out[k] = ParseCell(&v)
	}
	return out
}

func sampleRow(id string, cells map[string]string) RateRow {
	return RateRow{
		ID:           id,
		ShipFrom:     "United Kingdom",
		ShipTo:       "Germany",
		Courier:      "DPD",
		Service:      "Classic",
		Rating:       "4.5",
		Insurance:    "Included",
		ElectLiquids: "No",
		DaysEnvelope: "1-2 days",
		DaysParcel:   "3-5 days",
		Cells:        cellsFromRaw(cells),
	}
}

func fptr(f float64) *float64 { return &f }

func TestQuoteNarrowsToSingleTier(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{
			"box_5kg":  "12.50",
			"box_10kg": "18.00",
		}),
	}}, stubOverrides{}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Parcel,
		WeightKg: fptr(4),
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "1_box_5kg", res.Lines[0].ID)
	assert.Equal(t, 5.0, res.Lines[0].WeightKg)
	assert.Equal(t, "3-5 days", res.Lines[0].Days)

	amount, ok := res.Cheapest.Amount()
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("12.5")))
}

func TestQuoteOverweightIsEmptyNotError(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{"box_25kg": "40.00"}),
	}}, stubOverrides{}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Parcel,
		WeightKg: fptr(26),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
	assert.False(t, res.Cheapest.Available())
}

func TestQuoteSkipsUnavailableAndPicksMin(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{"box_5kg": "12.50"}),
		sampleRow("2", map[string]string{"box_5kg": "9.99"}),
		sampleRow("3", map[string]string{"box_5kg": "no service"}),
		sampleRow("4", map[string]string{"box_5kg": "15.00"}),
	}}, stubOverrides{}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Parcel,
		WeightKg: fptr(3),
	})
	require.NoError(t, err)
	assert.Len(t, res.Lines, 3)

	amount, ok := res.Cheapest.Amount()
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("9.99")))
}

func TestQuoteMalformedEmittedButExcludedFromMin(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{"box_5kg": "1O.OO"}),
		sampleRow("2", map[string]string{"box_5kg": "14.00"}),
	}}, stubOverrides{}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Parcel,
		WeightKg: fptr(3),
	})
	require.NoError(t, err)
	assert.Len(t, res.Lines, 2)

	amount, ok := res.Cheapest.Amount()
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("14")))
}

func TestQuoteFullExpansionSortedByWeight(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{
			"box_25kg": "40.00",
			"box_5kg":  "12.00",
			"box_15kg": "25.00",
		}),
	}}, stubOverrides{}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Parcel,
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 3)
	assert.Equal(t, []float64{5, 15, 25}, []float64{
		res.Lines[0].WeightKg, res.Lines[1].WeightKg, res.Lines[2].WeightKg,
	})
}

func TestQuoteSuitcaseExpansionIncludes30Kg(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{
			"suitcase_10kg": "30.00",
			"suitcase_20kg": "45.00",
			"suitcase_30kg": "60.00",
		}),
	}}, stubOverrides{}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Suitcase,
	})
	require.NoError(t, err)
	assert.Len(t, res.Lines, 3)
	assert.Equal(t, 30.0, res.Lines[2].WeightKg)
}

func TestQuoteEnvelopeUsesEnvelopeDays(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{"doc_half_kg": "3.20"}),
	}}, stubOverrides{}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Envelope,
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "1-2 days", res.Lines[0].Days)
	assert.Equal(t, 0.5, res.Lines[0].WeightKg)
}

func TestQuoteInvalidCategory(t *testing.T) {
	eng := NewEngine(stubRates{}, stubOverrides{}, nil)
	_, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Category("freight"),
	})
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestQuoteStorePropagatesError(t *testing.T) {
	boom := errors.New("connection refused")
	eng := NewEngine(stubRates{err: boom}, stubOverrides{}, nil)
	_, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Parcel,
	})
	assert.ErrorIs(t, err, boom)
}

func TestQuoteOverrideSubstitutesNumericCells(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{
			"box_5kg":  "12.50",
			"box_10kg": "no service",
		}),
	}}, stubOverrides{ov: &Override{
		ID:      7,
		Country: "Germany",
		Price:   decimal.RequireFromString("42.00"),
		Type:    OverrideReceiver,
	}}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: AmazonAddress,
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)

	amount, ok := res.Lines[0].Price.Amount()
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("42")))
	assert.Equal(t, "parcel", res.Lines[0].Type)
}

func TestQuoteOverrideSynthesizesRowWhenRouteUnserved(t *testing.T) {
	eng := NewEngine(stubRates{}, stubOverrides{ov: &Override{
		ID:      7,
		Country: "Iceland",
		Price:   decimal.RequireFromString("42.00"),
		Type:    OverrideReceiver,
	}}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Iceland",
		Category: AmazonAddress,
		WeightKg: fptr(3),
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "admin_rate_box_5kg", res.Lines[0].ID)
	assert.Equal(t, "5-7 days", res.Lines[0].Days)

	amount, ok := res.Lines[0].Price.Amount()
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("42")))
}

func TestQuoteOverrideNotAppliedToParcel(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{"box_5kg": "12.50"}),
	}}, stubOverrides{ov: &Override{
		Price: decimal.RequireFromString("42.00"),
	}}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Parcel,
		WeightKg: fptr(3),
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)

	amount, ok := res.Lines[0].Price.Amount()
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("12.5")))
}

func TestQuoteIdempotent(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{"box_5kg": "12.50", "box_10kg": "18.00"}),
	}}, stubOverrides{}, nil)

	req := Request{ShipFrom: "United Kingdom", ShipTo: "Germany", Category: Parcel}
	first, err := eng.Quote(context.Background(), req)
	require.NoError(t, err)
	second, err := eng.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestQuoteLineCarriesDimensions(t *testing.T) {
	eng := NewEngine(stubRates{rows: []RateRow{
		sampleRow("1", map[string]string{"box_5kg": "12.50"}),
	}}, stubOverrides{}, nil)

	res, err := eng.Quote(context.Background(), Request{
		ShipFrom: "United Kingdom",
		ShipTo:   "Germany",
		Category: Parcel,
		WeightKg: fptr(3),
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	require.NotNil(t, res.Lines[0].Dimensions)
	assert.NotZero(t, res.Lines[0].Dimensions.LengthCm)
}
