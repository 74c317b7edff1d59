package pricing

// Dimension describes the physical box associated with a tier key. The
// table is built once at startup and injected into the engine; it is never
// re-read per request.
type Dimension struct {
	Name     string  `json:"name"`
	LengthCm float64 `json:"length_cm"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`
}

// DefaultDimensions is the stock box catalog keyed by tier key.
func DefaultDimensions() map[string]Dimension {
	return map[string]Dimension{
		KeyDocHalfKg:    {Name: KeyDocHalfKg, LengthCm: 35, WidthCm: 27.5, HeightCm: 1},
		KeyPaket1Kg:     {Name: KeyPaket1Kg, LengthCm: 22.5, WidthCm: 14.5, HeightCm: 9},
		KeyPaket2Kg:     {Name: KeyPaket2Kg, LengthCm: 33, WidthCm: 21.5, HeightCm: 11},
		KeyBox5Kg:       {Name: KeyBox5Kg, LengthCm: 33, WidthCm: 32, HeightCm: 18},
		KeyBox10Kg:      {Name: KeyBox10Kg, LengthCm: 40, WidthCm: 35, HeightCm: 25},
		KeyBox15Kg:      {Name: KeyBox15Kg, LengthCm: 45, WidthCm: 40, HeightCm: 30},
		KeyBox20Kg:      {Name: KeyBox20Kg, LengthCm: 50, WidthCm: 45, HeightCm: 35},
		KeyBox25Kg:      {Name: KeyBox25Kg, LengthCm: 55, WidthCm: 50, HeightCm: 40},
		KeySuitcase10Kg: {Name: KeySuitcase10Kg, LengthCm: 55, WidthCm: 40, HeightCm: 23},
		KeySuitcase20Kg: {Name: KeySuitcase20Kg, LengthCm: 65, WidthCm: 45, HeightCm: 28},
		KeySuitcase30Kg: {Name: KeySuitcase30Kg, LengthCm: 75, WidthCm: 50, HeightCm: 32},
	}
}
