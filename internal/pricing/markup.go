package pricing

import "github.com/shopspring/decimal"

// ApplyMarkup folds zone markup into a tier-price map: the envelope markup
// raises the document column, the parcel markup raises every other column.
// A zero markup leaves prices untouched, and only numeric cells move;
// unavailable and malformed cells keep their state.
func ApplyMarkup(cells map[string]Cell, envelopeMarkup, parcelMarkup decimal.Decimal) map[string]Cell {
	out := make(map[string]Cell, len(cells))
	for key, cell := range cells {
		markup := parcelMarkup
		if key == KeyDocHalfKg {
			markup = envelopeMarkup
		}
		if markup.IsZero() {
			out[key] = cell
			continue
		}
		if amount, ok := cell.Amount(); ok {
			out[key] = AmountCell(amount.Add(markup))
		} else {
			out[key] = cell
		}
	}
	return out
}
