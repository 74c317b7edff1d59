package pricing

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the coarse shipment classification that decides which
// weight-tier columns apply to a quote.
type Category string

const (
	Envelope Category = "envelope"
	Parcel   Category = "parcel"
	Packet   Category = "packet"
	Suitcase Category = "suitcase"
	// AmazonAddress is priced like Parcel but is eligible for the
	// admin-configured flat country override.
	AmazonAddress Category = "amazon_address"
)

// ErrInvalidCategory is returned for categories outside the closed vocabulary.
var ErrInvalidCategory = errors.New("invalid category")

// Tier keys form a fixed, closed vocabulary. Rate rows never expose keys
// outside this set.
const (
	KeyDocHalfKg    = "doc_half_kg"
	KeyPaket1Kg     = "paket_1kg"
	KeyPaket2Kg     = "paket_2kg"
	KeyBox5Kg       = "box_5kg"
	KeyBox10Kg      = "box_10kg"
	KeyBox15Kg      = "box_15kg"
	KeyBox20Kg      = "box_20kg"
	KeyBox25Kg      = "box_25kg"
	KeySuitcase10Kg = "suitcase_10kg"
	KeySuitcase20Kg = "suitcase_20kg"
	KeySuitcase30Kg = "suitcase_30kg"
)

var (
	envelopeKeys = []string{KeyDocHalfKg}
	packetKeys   = []string{KeyPaket1Kg, KeyPaket2Kg}
	parcelKeys   = []string{KeyBox5Kg, KeyBox10Kg, KeyBox15Kg, KeyBox20Kg, KeyBox25Kg}
	suitcaseKeys = []string{KeySuitcase10Kg, KeySuitcase20Kg, KeySuitcase30Kg}
)

// AllTierKeys lists every tier key in ascending weight order within each group.
func AllTierKeys() []string {
	keys := make([]string, 0, 11)
	keys = append(keys, envelopeKeys...)
	keys = append(keys, packetKeys...)
	keys = append(keys, parcelKeys...)
	keys = append(keys, suitcaseKeys...)
	return keys
}

// ParseCategory normalizes a caller-supplied category string. It accepts the
// plural spellings used by the quote form.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "envelope":
		return Envelope, nil
	case "parcel":
		return Parcel, nil
	case "packet", "packets":
		return Packet, nil
	case "suitcase", "suitcases":
		return Suitcase, nil
	case "amazon_address", "amazon address", "amazon":
		return AmazonAddress, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Keys returns the tier-key schema for the category, nil for unknown values.
// AmazonAddress shares the parcel schema.
func (c Category) Keys() []string {
	switch c {
	case Envelope:
		return envelopeKeys
	case Packet:
		return packetKeys
	case Parcel, AmazonAddress:
		return parcelKeys
	case Suitcase:
		return suitcaseKeys
	}
	return nil
}

// LineType is the label carried on emitted quote lines.
func (c Category) LineType() string {
	if c == AmazonAddress {
		return "parcel"
	}
	return string(c)
}

// OverrideEligible reports whether the category participates in the flat
// country-price override path.
func (c Category) OverrideEligible() bool {
	return c == AmazonAddress
}
