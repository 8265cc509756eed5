package config

import (
	"encoding/json"

	"github.com/tgrayson/streamtv/pkg/bytesize"
)

// ByteSize is a byte count that accepts human-readable units in the
// config file, e.g. "5MB", "1.5 GB", or a bare number of bytes.
type ByteSize int64

// UnmarshalText lets Viper decode string values like "10MB".
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := bytesize.Parse(string(text))
	if err != nil {
		return err
	}
	*b = ByteSize(parsed)
	return nil
}

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalJSON accepts either a unit string or a raw byte count.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*b = ByteSize(n)
		return nil
	}
	return b.UnmarshalText([]byte(s))
}

func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// Bytes returns the raw byte count.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

func (b ByteSize) String() string {
	return bytesize.Format(bytesize.Size(b))
}
