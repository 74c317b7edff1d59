package pricing

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// RateRow is one carrier's tier-price table for an origin/destination pair,
// read-only from the engine's perspective.
type RateRow struct {
	ID           string
	ShipFrom     string
	ShipTo       string
	Courier      string
	Service      string
	Rating       string
	Insurance    string
	ElectLiquids string
	DaysEnvelope string
	DaysParcel   string
	Cells        map[string]Cell
}

// Override is an admin-configured flat price for a country.
type Override struct {
	ID      int64
	Country string
	Price   decimal.Decimal
	Type    string
}

const (
	OverrideReceiver = "receiver"
	OverrideSender   = "sender"
)

// RateStore fetches candidate rate rows for a route. An unserved route is an
// empty slice, not an error.
type RateStore interface {
	RatesByRoute(ctx context.Context, shipFrom, shipTo string) ([]RateRow, error)
}

// OverrideStore looks up the authoritative country override, nil when none
// is configured.
type OverrideStore interface {
	OverrideByCountry(ctx context.Context, country, overrideType string) (*Override, error)
}

// QuoteLine is one emitted (carrier, tier) price option.
type QuoteLine struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Dimensions   *Dimension `json:"dimensions,omitempty"`
	WeightKg     float64    `json:"weight"`
	Price        Cell       `json:"price"`
	Days         string     `json:"days"`
	Insurance    string     `json:"insurance"`
	Rating       string     `json:"rating"`
	Courier      string     `json:"courier"`
	Service      string     `json:"service"`
	ElectLiquids string     `json:"elect_liquids"`
}

// QuoteResult is the aggregate response: lines ascending by weight plus the
// cheapest numeric price, or the unavailable sentinel when nothing prices.
type QuoteResult struct {
	Cheapest Cell        `json:"cheapest"`
	Lines    []QuoteLine `json:"lines"`
}

// Request describes one quote resolution. A nil WeightKg expands the full
// tier table; a set WeightKg narrows to the single applicable tier.
type Request struct {
	ShipFrom string
	ShipTo   string
	Category Category
	WeightKg *float64
}

// Engine resolves quote requests against the rate and override stores. It is
// stateless and safe for concurrent use.
type Engine struct {
	rates     RateStore
	overrides OverrideStore
	dims      map[string]Dimension
}

// NewEngine builds an engine. A nil dimension table falls back to the stock
// catalog.
func NewEngine(rates RateStore, overrides OverrideStore, dims map[string]Dimension) *Engine {
	if dims == nil {
		dims = DefaultDimensions()
	}
	return &Engine{rates: rates, overrides: overrides, dims: dims}
}

// Quote computes the available price options for a shipment request.
//
// An overweight request and an unserved route both come back as a successful
// empty result. Store failures propagate so the caller can distinguish
// "no service" from an infrastructure fault.
func (e *Engine) Quote(ctx context.Context, req Request) (QuoteResult, error) {
	keys := req.Category.Keys()
	if keys == nil {
		return QuoteResult{}, fmt.Errorf("%w: %q", ErrInvalidCategory, string(req.Category))
	}
	if req.WeightKg != nil {
		key, err := SelectTier(req.Category, *req.WeightKg)
		if err != nil {
			return QuoteResult{Cheapest: UnavailableCell()}, nil
		}
		keys = []string{key}
	}

	rows, err := e.rates.RatesByRoute(ctx, req.ShipFrom, req.ShipTo)
	if err != nil {
		return QuoteResult{}, fmt.Errorf("fetch rates %s to %s: %w", req.ShipFrom, req.ShipTo, err)
	}

	if req.Category.OverrideEligible() {
		ov, err := e.overrides.OverrideByCountry(ctx, req.ShipTo, OverrideReceiver)
		if err != nil {
			return QuoteResult{}, fmt.Errorf("fetch country override %s: %w", req.ShipTo, err)
		}
		if len(rows) == 0 {
			rows = []RateRow{placeholderRow(req.ShipFrom, req.ShipTo)}
		}
		if ov != nil {
			rows = applyOverride(rows, ov.Price)
		}
	}

	lines := e.expand(rows, req.Category, keys)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].WeightKg < lines[j].WeightKg })

	return QuoteResult{Cheapest: cheapest(lines), Lines: lines}, nil
}

// placeholderRow keeps an override-configured route quotable when no carrier
// data is loaded. Prices default to zero until the override substitutes them.
func placeholderRow(shipFrom, shipTo string) RateRow {
	cells := make(map[string]Cell, len(parcelKeys))
	for _, key := range parcelKeys {
		cells[key] = AmountCell(decimal.Zero)
	}
	return RateRow{
		ID:           "admin_rate",
		ShipFrom:     shipFrom,
		ShipTo:       shipTo,
		Courier:      "Standard",
		Service:      "Standard",
		Rating:       "5.0",
		Insurance:    "Included",
		ElectLiquids: "No",
		DaysParcel:   "5-7 days",
		Cells:        cells,
	}
}

// applyOverride substitutes the flat price into every numeric parcel-tier
// cell. Unavailable and malformed cells keep their state so a no-service
// tier stays hidden even on an override route.
func applyOverride(rows []RateRow, price decimal.Decimal) []RateRow {
	out := make([]RateRow, len(rows))
	for i, row := range rows {
		cells := make(map[string]Cell, len(row.Cells))
		for key, cell := range row.Cells {
			cells[key] = cell
		}
		for _, key := range parcelKeys {
			if _, ok := cells[key].Amount(); ok {
				cells[key] = AmountCell(price)
			}
		}
		row.Cells = cells
		out[i] = row
	}
	return out
}

func (e *Engine) expand(rows []RateRow, cat Category, keys []string) []QuoteLine {
	var lines []QuoteLine
	for _, row := range rows {
		for _, key := range keys {
			cell, ok := row.Cells[key]
			if !ok || !cell.Available() {
				continue
			}
			var dim *Dimension
			if d, found := e.dims[key]; found {
				dim = &d
			}
			days := row.DaysParcel
			if cat == Envelope {
				days = row.DaysEnvelope
			}
			lines = append(lines, QuoteLine{
				ID:           row.ID + "_" + key,
				Type:         cat.LineType(),
				Dimensions:   dim,
				WeightKg:     WeightFromKey(key),
				Price:        cell,
				Days:         days,
				Insurance:    row.Insurance,
				Rating:       row.Rating,
				Courier:      row.Courier,
				Service:      row.Service,
				ElectLiquids: row.ElectLiquids,
			})
		}
	}
	return lines
}

func cheapest(lines []QuoteLine) Cell {
	var (
		best decimal.Decimal
		have bool
	)
	for _, ln := range lines {
		a, ok := ln.Price.Amount()
		if !ok {
			continue
		}
		if !have || a.LessThan(best) {
			best = a
			have = true
		}
	}
	if !have {
		return UnavailableCell()
	}
	return AmountCell(best)
}
