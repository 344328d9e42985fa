package ftms

import "math"

// EncodeSpeedCadence builds an Indoor Bike Data payload carrying instantaneous
// speed and cadence, as a fitness machine would notify it.
func EncodeSpeedCadence(speedKph, cadenceRpm float64) []byte {
	flags := uint16(flagInstantaneousCadence)
	buf := make([]byte, 0, 6)
	buf = appendU16(buf, flags)
	buf = appendU16(buf, scaleU16(speedKph, speedResolutionKph))
	buf = appendU16(buf, scaleU16(cadenceRpm, cadenceResolutionRpm))
	return buf
}

// EncodeCadenceOnly builds a payload with bit 0 set so speed is omitted
func EncodeCadenceOnly(cadenceRpm float64) []byte {
	flags := uint16(flagMoreData | flagInstantaneousCadence)
	buf := make([]byte, 0, 4)
	buf = appendU16(buf, flags)
	buf = appendU16(buf, scaleU16(cadenceRpm, cadenceResolutionRpm))
	return buf
}

func appendU16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func scaleU16(v, resolution float64) uint16 {
	raw := math.Round(v / resolution)
	if raw < 0 {
		return 0
	}
	if raw > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(raw)
}
