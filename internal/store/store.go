package store

import (
	"context"

	"github.com/shopspring/decimal"

	"parcelrates/internal/pricing"
)

// Courier is an admin-managed carrier registry entry.
type Courier struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Logo *string `json:"logo,omitempty"`
}

// ZoneRate is one row of the zone-based rate table. Markup is kept on the
// row; ZoneRates returns rows with markup already folded into the cells.
type ZoneRate struct {
	ID             int64                   `json:"id"`
	Zone           string                  `json:"zone"`
	ShipFrom       string                  `json:"ship_from"`
	ShipTo         string                  `json:"ship_to"`
	Cells          map[string]pricing.Cell `json:"prices"`
	DaysEnvelope   string                  `json:"days_envelop"`
	DaysParcel     string                  `json:"days_parcel"`
	Insurance      string                  `json:"insurance"`
	Rating         string                  `json:"rating"`
	Courier        string                  `json:"courier"`
	Service        string                  `json:"service"`
	MarkupEnvelope decimal.Decimal         `json:"markup_envelop"`
	MarkupParcel   decimal.Decimal         `json:"markup_parcel"`
}

// Markup category column names accepted by SetZoneMarkup.
const (
	MarkupEnvelope = "markup_envelop"
	MarkupParcel   = "markup_parcel"
)

// Store is the persistence surface the HTTP layer consumes. Postgres
// implements it; server tests stub it.
type Store interface {
	pricing.RateStore
	pricing.OverrideStore

	ShipFromCountries(ctx context.Context) ([]string, error)
	ShipToCountries(ctx context.Context) ([]string, error)
	AllRates(ctx context.Context) ([]pricing.RateRow, error)
	RatesByCourier(ctx context.Context, courier, shipFrom string) ([]pricing.RateRow, error)
	DeleteRatesByCourier(ctx context.Context, courier, shipFrom string) (int64, error)

	CreateOverride(ctx context.Context, country string, price decimal.Decimal, overrideType string) (*pricing.Override, error)
	UpdateOverride(ctx context.Context, id int64, country string, price decimal.Decimal, overrideType string) (*pricing.Override, error)
	DeleteOverride(ctx context.Context, id int64) error
	Overrides(ctx context.Context) ([]pricing.Override, error)
	OverrideByID(ctx context.Context, id int64) (*pricing.Override, error)

	CreateCourier(ctx context.Context, name string, logo *string) (*Courier, error)
	UpdateCourier(ctx context.Context, id int64, name string, logo *string) (*Courier, error)
	DeleteCourier(ctx context.Context, id int64) error
	Couriers(ctx context.Context) ([]Courier, error)
	CourierByID(ctx context.Context, id int64) (*Courier, error)

	Zones(ctx context.Context) ([]string, error)
	ZoneRates(ctx context.Context) ([]ZoneRate, error)
	SetZoneMarkup(ctx context.Context, zone, category string, markup decimal.Decimal) error
}
