package store

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"parcelrates/internal/db"
	"parcelrates/internal/pricing"
)

// Postgres implements Store over a pgx pool (or any db.Querier).
type Postgres struct {
	pool db.Querier
}

func NewPostgres(pool db.Querier) *Postgres {
	return &Postgres{pool: pool}
}

const migration = `
CREATE TABLE IF NOT EXISTS parcel_rates (
	id            BIGSERIAL PRIMARY KEY,
	ship_from     TEXT NOT NULL,
	ship_to       TEXT NOT NULL,
	doc_half_kg   TEXT,
	paket_1kg     TEXT,
	paket_2kg     TEXT,
	box_5kg       TEXT,
	box_10kg      TEXT,
	box_15kg      TEXT,
	box_20kg      TEXT,
	box_25kg      TEXT,
	suitcase_10kg TEXT,
	suitcase_20kg TEXT,
	suitcase_30kg TEXT,
	days_envelop  TEXT,
	days_parcel   TEXT,
	insurance     TEXT,
	rating        TEXT,
	courier       TEXT,
	service       TEXT,
	elect_liquids TEXT
);
CREATE INDEX IF NOT EXISTS parcel_rates_route_idx ON parcel_rates (ship_from, ship_to);

CREATE TABLE IF NOT EXISTS country_price_overrides (
	id      BIGSERIAL PRIMARY KEY,
	country TEXT NOT NULL,
	price   NUMERIC(12,2) NOT NULL DEFAULT 0,
	type    TEXT NOT NULL DEFAULT 'receiver'
);

CREATE TABLE IF NOT EXISTS couriers (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	logo TEXT
);

CREATE TABLE IF NOT EXISTS zone_rates (
	id             BIGSERIAL PRIMARY KEY,
	zone           TEXT NOT NULL,
	ship_from      TEXT,
	ship_to        TEXT,
	doc_half_kg    TEXT,
	paket_1kg      TEXT,
	paket_2kg      TEXT,
	box_5kg        TEXT,
	box_10kg       TEXT,
	box_15kg       TEXT,
	box_20kg       TEXT,
	box_25kg       TEXT,
	suitcase_10kg  TEXT,
	suitcase_20kg  TEXT,
	suitcase_30kg  TEXT,
	days_envelop   TEXT,
	days_parcel    TEXT,
	insurance      TEXT,
	rating         TEXT,
	courier        TEXT,
	service        TEXT,
	markup_envelop NUMERIC(12,2),
	markup_parcel  NUMERIC(12,2)
);
`

// Migrate creates the schema if it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, migration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

const rateColumns = `id, ship_from, ship_to,
	doc_half_kg, paket_1kg, paket_2kg,
	box_5kg, box_10kg, box_15kg, box_20kg, box_25kg,
	suitcase_10kg, suitcase_20kg, suitcase_30kg,
	days_envelop, days_parcel, insurance, rating, courier, service, elect_liquids`

// tierColumns lists the price columns in the same order rateColumns selects
// them.
var tierColumns = pricing.AllTierKeys()

func scanRateRows(rows pgx.Rows) ([]pricing.RateRow, error) {
	defer rows.Close()
	var out []pricing.RateRow
	for rows.Next() {
		var (
			id                 int64
			shipFrom, shipTo   string
			cells              [11]*string
			daysEnv, daysParc  *string
			insurance, rating  *string
			courier, service   *string
			electLiquids       *string
		)
		dest := []any{&id, &shipFrom, &shipTo}
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		dest = append(dest, &daysEnv, &daysParc, &insurance, &rating, &courier, &service, &electLiquids)
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rate row")
		}
		cellMap := make(map[string]pricing.Cell, len(tierColumns))
		for i, key := range tierColumns {
			cellMap[key] = pricing.ParseCell(cells[i])
		}
		out = append(out, pricing.RateRow{
			ID:           strconv.FormatInt(id, 10),
			ShipFrom:     shipFrom,
			ShipTo:       shipTo,
			Courier:      text(courier),
			Service:      text(service),
			Rating:       text(rating),
			Insurance:    text(insurance),
			ElectLiquids: text(electLiquids),
			DaysEnvelope: text(daysEnv),
			DaysParcel:   text(daysParc),
			Cells:        cellMap,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate rate rows")
	}
	return out, nil
}

// RatesByRoute returns every carrier row serving the exact route. No
// normalization happens here; country strings match byte for byte.
func (p *Postgres) RatesByRoute(ctx context.Context, shipFrom, shipTo string) ([]pricing.RateRow, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+rateColumns+` FROM parcel_rates WHERE ship_from = $1 AND ship_to = $2 ORDER BY id`,
		shipFrom, shipTo)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: rates by route")
	}
	return scanRateRows(rows)
}

func (p *Postgres) AllRates(ctx context.Context) ([]pricing.RateRow, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+rateColumns+` FROM parcel_rates ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all rates")
	}
	return scanRateRows(rows)
}

func (p *Postgres) RatesByCourier(ctx context.Context, courier, shipFrom string) ([]pricing.RateRow, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+rateColumns+` FROM parcel_rates WHERE courier = $1 AND ship_from = $2 ORDER BY id`,
		courier, shipFrom)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: rates by courier")
	}
	return scanRateRows(rows)
}

func (p *Postgres) DeleteRatesByCourier(ctx context.Context, courier, shipFrom string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM parcel_rates WHERE courier = $1 AND ship_from = $2`, courier, shipFrom)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete rates by courier")
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) ShipFromCountries(ctx context.Context) ([]string, error) {
	return p.stringColumn(ctx,
		`SELECT DISTINCT ship_from FROM parcel_rates WHERE ship_from IS NOT NULL ORDER BY ship_from`,
		"ship from countries")
}

func (p *Postgres) ShipToCountries(ctx context.Context) ([]string, error) {
	return p.stringColumn(ctx,
		`SELECT DISTINCT ship_to FROM parcel_rates WHERE ship_to IS NOT NULL ORDER BY ship_to`,
		"ship to countries")
}

func (p *Postgres) Zones(ctx context.Context) ([]string, error) {
	return p.stringColumn(ctx,
		`SELECT DISTINCT zone FROM zone_rates ORDER BY zone`, "zones")
}

func (p *Postgres) stringColumn(ctx context.Context, sql, op string) ([]string, error) {
	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", op)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: iterate %s", op)
	}
	return out, nil
}

// OverrideByCountry returns the authoritative override for a country, nil
// when none is configured. Duplicates tie-break on the lowest id.
func (p *Postgres) OverrideByCountry(ctx context.Context, country, overrideType string) (*pricing.Override, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, country, price::text, type FROM country_price_overrides
		 WHERE country = $1 AND type = $2 ORDER BY id LIMIT 1`,
		country, overrideType)
	ov, err := scanOverride(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: override by country")
	}
	return ov, nil
}

func scanOverride(row pgx.Row) (*pricing.Override, error) {
	var (
		ov       pricing.Override
		priceRaw string
	)
	if err := row.Scan(&ov.ID, &ov.Country, &priceRaw, &ov.Type); err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: parse override price %q", priceRaw)
	}
	ov.Price = price
	return &ov, nil
}

func (p *Postgres) CreateOverride(ctx context.Context, country string, price decimal.Decimal, overrideType string) (*pricing.Override, error) {
	row := p.pool.QueryRow(ctx,
		`INSERT INTO country_price_overrides (country, price, type) VALUES ($1, $2, $3)
		 RETURNING id, country, price::text, type`,
		country, price.StringFixed(2), overrideType)
	ov, err := scanOverride(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create override")
	}
	return ov, nil
}

func (p *Postgres) UpdateOverride(ctx context.Context, id int64, country string, price decimal.Decimal, overrideType string) (*pricing.Override, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE country_price_overrides SET country = $1, price = $2, type = $3 WHERE id = $4
		 RETURNING id, country, price::text, type`,
		country, price.StringFixed(2), overrideType, id)
	ov, err := scanOverride(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: update override")
	}
	return ov, nil
}

func (p *Postgres) DeleteOverride(ctx context.Context, id int64) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM country_price_overrides WHERE id = $1`, id); err != nil {
		return eris.Wrap(err, "postgres: delete override")
	}
	return nil
}

func (p *Postgres) Overrides(ctx context.Context) ([]pricing.Override, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, country, price::text, type FROM country_price_overrides ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list overrides")
	}
	defer rows.Close()
	var out []pricing.Override
	for rows.Next() {
		ov, err := scanOverride(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		out = append(out, *ov)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate overrides")
	}
	return out, nil
}

func (p *Postgres) OverrideByID(ctx context.Context, id int64) (*pricing.Override, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, country, price::text, type FROM country_price_overrides WHERE id = $1`, id)
	ov, err := scanOverride(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: override by id")
	}
	return ov, nil
}

func (p *Postgres) CreateCourier(ctx context.Context, name string, logo *string) (*Courier, error) {
	var c Courier
	err := p.pool.QueryRow(ctx,
		`INSERT INTO couriers (name, logo) VALUES ($1, $2) RETURNING id, name, logo`,
		name, logo).Scan(&c.ID, &c.Name, &c.Logo)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create courier")
	}
	return &c, nil
}

func (p *Postgres) UpdateCourier(ctx context.Context, id int64, name string, logo *string) (*Courier, error) {
	var c Courier
	err := p.pool.QueryRow(ctx,
		`UPDATE couriers SET name = $1, logo = COALESCE($2, logo) WHERE id = $3
		 RETURNING id, name, logo`,
		name, logo, id).Scan(&c.ID, &c.Name, &c.Logo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: update courier")
	}
	return &c, nil
}

func (p *Postgres) DeleteCourier(ctx context.Context, id int64) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM couriers WHERE id = $1`, id); err != nil {
		return eris.Wrap(err, "postgres: delete courier")
	}
	return nil
}

func (p *Postgres) Couriers(ctx context.Context) ([]Courier, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, logo FROM couriers ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list couriers")
	}
	defer rows.Close()
	var out []Courier
	for rows.Next() {
		var c Courier
		if err := rows.Scan(&c.ID, &c.Name, &c.Logo); err != nil {
			return nil, eris.Wrap(err, "postgres: scan courier")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate couriers")
	}
	return out, nil
}

func (p *Postgres) CourierByID(ctx context.Context, id int64) (*Courier, error) {
	var c Courier
	err := p.pool.QueryRow(ctx, `SELECT id, name, logo FROM couriers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Logo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: courier by id")
	}
	return &c, nil
}

// ZoneRates returns the zone rate table with markup folded into the price
// cells. Rows whose document column is the no-service sentinel are omitted,
// matching the admin listing the table feeds.
func (p *Postgres) ZoneRates(ctx context.Context) ([]ZoneRate, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, zone, COALESCE(ship_from, ''), COALESCE(ship_to, ''),
			doc_half_kg, paket_1kg, paket_2kg,
			box_5kg, box_10kg, box_15kg, box_20kg, box_25kg,
			suitcase_10kg, suitcase_20kg, suitcase_30kg,
			days_envelop, days_parcel, insurance, rating, courier, service,
			COALESCE(markup_envelop, 0)::text, COALESCE(markup_parcel, 0)::text
		 FROM zone_rates
		 WHERE LOWER(COALESCE(doc_half_kg, '')) <> 'no service'
		 ORDER BY zone DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: zone rates")
	}
	defer rows.Close()
	var out []ZoneRate
	for rows.Next() {
		var (
			zr                 ZoneRate
			cells              [11]*string
			daysEnv, daysParc  *string
			insurance, rating  *string
			courier, service   *string
			mkEnvRaw, mkParRaw string
		)
		dest := []any{&zr.ID, &zr.Zone, &zr.ShipFrom, &zr.ShipTo}
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		dest = append(dest, &daysEnv, &daysParc, &insurance, &rating, &courier, &service, &mkEnvRaw, &mkParRaw)
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone rate")
		}
		mkEnv, err := decimal.NewFromString(mkEnvRaw)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: parse markup %q", mkEnvRaw)
		}
		mkPar, err := decimal.NewFromString(mkParRaw)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: parse markup %q", mkParRaw)
		}
		cellMap := make(map[string]pricing.Cell, len(tierColumns))
		for i, key := range tierColumns {
			cellMap[key] = pricing.ParseCell(cells[i])
		}
		zr.Cells = pricing.ApplyMarkup(cellMap, mkEnv, mkPar)
		zr.DaysEnvelope = text(daysEnv)
		zr.DaysParcel = text(daysParc)
		zr.Insurance = text(insurance)
		zr.Rating = text(rating)
		zr.Courier = text(courier)
		zr.Service = text(service)
		zr.MarkupEnvelope = mkEnv
		zr.MarkupParcel = mkPar
		out = append(out, zr)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate zone rates")
	}
	return out, nil
}

// allServiced guards markup updates: a zone row takes markup only when every
// tier column is in service.
const allServiced = `
	LOWER(COALESCE(doc_half_kg, ''))   <> 'no service' AND
	LOWER(COALESCE(paket_1kg, ''))     <> 'no service' AND
	LOWER(COALESCE(paket_2kg, ''))     <> 'no service' AND
	LOWER(COALESCE(box_5kg, ''))       <> 'no service' AND
	LOWER(COALESCE(box_10kg, ''))      <> 'no service' AND
	LOWER(COALESCE(box_15kg, ''))      <> 'no service' AND
	LOWER(COALESCE(box_20kg, ''))      <> 'no service' AND
	LOWER(COALESCE(box_25kg, ''))      <> 'no service' AND
	LOWER(COALESCE(suitcase_10kg, '')) <> 'no service' AND
	LOWER(COALESCE(suitcase_20kg, '')) <> 'no service' AND
	LOWER(COALESCE(suitcase_30kg, '')) <> 'no service'`

// ErrInvalidMarkupCategory rejects markup columns outside the whitelist.
var ErrInvalidMarkupCategory = errors.New("invalid markup category")

// SetZoneMarkup writes the markup column for every fully-serviced row of a
// zone. The category name is whitelisted before it is spliced into SQL.
func (p *Postgres) SetZoneMarkup(ctx context.Context, zone, category string, markup decimal.Decimal) error {
	if category != MarkupEnvelope && category != MarkupParcel {
		return eris.Wrapf(ErrInvalidMarkupCategory, "%q", category)
	}
	sql := `UPDATE zone_rates SET ` + category + ` = $1 WHERE zone = $2 AND` + allServiced
	if _, err := p.pool.Exec(ctx, sql, markup.Round(2).StringFixed(2), zone); err != nil {
		return eris.Wrap(err, "postgres: set zone markup")
	}
	return nil
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
