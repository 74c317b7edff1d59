package pricing

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNoTier means no tier covers the requested weight. Callers treat it as
// an empty result, not a fault.
var ErrNoTier = errors.New("no tier available for weight")

// SelectTier maps a category and weight to the single applicable tier key.
// Upper bounds are inclusive: a 5kg parcel is box_5kg, not box_10kg.
//
// Suitcase selection caps at 20kg even though suitcase_30kg exists in the
// data model; the 30kg tier is reachable only through full-table expansion.
func SelectTier(cat Category, weightKg float64) (string, error) {
	switch cat {
	case Envelope:
		return KeyDocHalfKg, nil
	case Packet:
		switch {
		case weightKg <= 1:
			return KeyPaket1Kg, nil
		case weightKg <= 2:
			return KeyPaket2Kg, nil
		}
		return "", ErrNoTier
	case Parcel, AmazonAddress:
		switch {
		case weightKg <= 5:
			return KeyBox5Kg, nil
		case weightKg <= 10:
			return KeyBox10Kg, nil
		case weightKg <= 15:
			return KeyBox15Kg, nil
		case weightKg <= 20:
			return KeyBox20Kg, nil
		case weightKg <= 25:
			return KeyBox25Kg, nil
		}
		return "", ErrNoTier
	case Suitcase:
		switch {
		case weightKg > 0 && weightKg <= 10:
			return KeySuitcase10Kg, nil
		case weightKg > 10 && weightKg <= 20:
			return KeySuitcase20Kg, nil
		}
		return "", ErrNoTier
	}
	return "", ErrInvalidCategory
}

var tierKeyPrefixes = []string{"box_", "paket_", "suitcase_", "doc_"}

// WeightFromKey derives the numeric kilograms encoded in a tier key:
// "box_5kg" -> 5, "doc_half_kg" -> 0.5. Unparseable keys yield 0.
func WeightFromKey(key string) float64 {
	rest := key
	for _, p := range tierKeyPrefixes {
		if strings.HasPrefix(key, p) {
			rest = strings.TrimPrefix(key, p)
			break
		}
	}
	if rest == "half_kg" {
		return 0.5
	}
	var b strings.Builder
	for _, r := range rest {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return f
}
