package fitbridge

const (
	kgPerPound     = 0.45359237
	poundsPerKg    = 2.2046
	ouncesPerPound = 16.0
)

// PoundsOuncesToKg converts an imperial mass to kilograms.
func PoundsOuncesToKg(pounds, ounces float64) float64 {
	return (pounds + ounces/ouncesPerPound) * kgPerPound
}

// KgToPounds converts kilograms to pounds.
func KgToPounds(kg float64) float64 {
	return kg * poundsPerKg
}

// toKg applies the write-side conversion for unit.
func toKg(value float64, unit Unit) float64 {
	if unit == UnitPound {
		return PoundsOuncesToKg(value, 0)
	}
	return value
}

// fromKg applies the read-side conversion for unit.
func fromKg(kg float64, unit Unit) float64 {
	if unit == UnitPound {
		return KgToPounds(kg)
	}
	return kg
}
