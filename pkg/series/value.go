package series

import (
	"encoding/json"
	"math"
)

// NullFloat is a float64 that carries math.NaN() as its missing-value marker
// and serializes it as JSON null. Monitoring stations routinely report gaps,
// so "no reading" has to survive a round trip through JSON, which has no NaN.
type NullFloat float64

// Null returns the missing-value marker.
func Null() NullFloat {
	return NullFloat(math.NaN())
}

// IsNull reports whether the value represents a missing reading.
func (f NullFloat) IsNull() bool {
	return math.IsNaN(float64(f))
}

// Float returns the value as a plain float64. NaN if the value is null.
func (f NullFloat) Float() float64 {
	return float64(f)
}

// MarshalJSON serializes the value, emitting null for a missing reading.
func (f NullFloat) MarshalJSON() ([]byte, error) {
	if f.IsNull() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// UnmarshalJSON deserializes the value, mapping JSON null to the missing marker.
func (f *NullFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Null()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = NullFloat(v)
	return nil
}

// Measurement is a single observed value with its unit of measure.
type Measurement struct {
	Value NullFloat `json:"value"`
	Unit  string    `json:"unit,omitempty"`
}
