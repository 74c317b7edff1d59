package pricing

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// cellState distinguishes the three things a price column can hold.
type cellState int

const (
	cellUnavailable cellState = iota
	cellAmount
	cellMalformed
)

// unavailableMarker is the serialized form of a missing price.
const unavailableMarker = "unavailable"

// Cell is one price column value: a numeric amount, the "no service"
// sentinel, or malformed source text preserved verbatim. Malformed cells
// stay visible on quote lines but never feed the minimum computation.
type Cell struct {
	state  cellState
	amount decimal.Decimal
	raw    string
}

// ParseCell classifies raw price text from the rate store. A nil or blank
// value and any case variant of the sentinel count as unavailable; a
// non-negative decimal is an amount; everything else is malformed.
func ParseCell(raw *string) Cell {
	if raw == nil {
		return Cell{state: cellUnavailable}
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return Cell{state: cellUnavailable}
	}
	switch strings.ToLower(s) {
	case "no service", unavailableMarker:
		return Cell{state: cellUnavailable}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return Cell{state: cellMalformed, raw: s}
	}
	return Cell{state: cellAmount, amount: d}
}

// AmountCell wraps a known-good numeric price.
func AmountCell(d decimal.Decimal) Cell {
	return Cell{state: cellAmount, amount: d}
}

// UnavailableCell is the sentinel value.
func UnavailableCell() Cell {
	return Cell{state: cellUnavailable}
}

// Amount returns the numeric price, false for unavailable or malformed cells.
func (c Cell) Amount() (decimal.Decimal, bool) {
	if c.state != cellAmount {
		return decimal.Decimal{}, false
	}
	return c.amount, true
}

// Available reports whether the cell carries any value at all; malformed
// cells are available (they are emitted), unavailable cells are not.
func (c Cell) Available() bool {
	return c.state != cellUnavailable
}

// Raw returns the preserved source text of a malformed cell.
func (c Cell) Raw() string {
	return c.raw
}

// MarshalJSON emits amounts as numbers, the sentinel as "unavailable", and
// malformed cells as their raw source string.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.state {
	case cellAmount:
		return []byte(c.amount.String()), nil
	case cellMalformed:
		return json.Marshal(c.raw)
	}
	return json.Marshal(unavailableMarker)
}

func (c Cell) String() string {
	switch c.state {
	case cellAmount:
		return c.amount.String()
	case cellMalformed:
		return c.raw
	}
	return unavailableMarker
}
