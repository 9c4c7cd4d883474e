package thermal

// ZeroCelsiusInKelvin is 0°C expressed in Kelvin
const ZeroCelsiusInKelvin = 273.15

func CelsiusToKelvin(c float64) float64 {
	return c + ZeroCelsiusInKelvin
}

func KelvinToCelsius(k float64) float64 {
	return k - ZeroCelsiusInKelvin
}

// DeciKelvinToKelvin converts the integer wire encoding (Kelvin * 10) to Kelvin
func DeciKelvinToKelvin(dk int) float64 {
	return float64(dk) / 10
}

func KelvinToDeciKelvin(k float64) int {
	if k < 0 {
		return int(k*10 - 0.5)
	}
	return int(k*10 + 0.5)
}
