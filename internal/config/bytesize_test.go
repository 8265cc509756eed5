package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSizeUnmarshalText(t *testing.T) {
	tests := []struct {
		input    string
		expected ByteSize
		wantErr  bool
	}{
		{"1024", 1024, false},
		{"5KB", 5 * 1024, false},
		{"10MB", 10 * 1024 * 1024, false},
		{"1.5MB", ByteSize(1.5 * 1024 * 1024), false},
		{"5 mb", 5 * 1024 * 1024, false},
		{"0", 0, false},
		{"banana", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var b ByteSize
			err := b.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, b)
		})
	}
}

func TestByteSizeJSON(t *testing.T) {
	var b ByteSize
	require.NoError(t, json.Unmarshal([]byte(`"5MB"`), &b))
	assert.Equal(t, ByteSize(5*1024*1024), b)

	// Raw byte counts still decode.
	require.NoError(t, json.Unmarshal([]byte(`5242880`), &b))
	assert.Equal(t, ByteSize(5242880), b)

	data, err := json.Marshal(ByteSize(5 * 1024 * 1024))
	require.NoError(t, err)
	assert.Equal(t, `"5MB"`, string(data))
}

func TestByteSizeString(t *testing.T) {
	assert.Equal(t, "500B", ByteSize(500).String())
	assert.Equal(t, "10MB", ByteSize(10*1024*1024).String())
	assert.Equal(t, "2GB", ByteSize(2*1024*1024*1024).String())
	assert.Equal(t, "0B", ByteSize(0).String())
	assert.Equal(t, int64(5242880), ByteSize(5*1024*1024).Bytes())
}
