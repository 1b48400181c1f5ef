package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"tickstream/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestTicks() []model.Tick {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return []model.Tick{
		{Symbol: "btcusdt", Price: 42000.5, Size: 0.001, Timestamp: base},
		{Symbol: "ethusdt", Price: 2250, Size: 1.25, Timestamp: base.Add(1500 * time.Millisecond)},
	}
}

// Test_WriteTicks tests CSV rendering
func Test_WriteTicks(t *testing.T) {
	tests := []struct {
		name        string
		ticks       []model.Tick
		expected    []string
		expectError error
		description string
	}{
		{
			name:  "Two ticks",
			ticks: createTestTicks(),
			expected: []string{
				"timestamp,symbol,price,size",
				"2024-01-02T03:04:05.000Z,btcusdt,42000.5,0.001",
				"2024-01-02T03:04:06.500Z,ethusdt,2250,1.25",
			},
			description: "Should render header and one row per tick in order",
		},
		{
			name: "Non-UTC timestamp",
			ticks: []model.Tick{
				{Symbol: "btcusdt", Price: 1, Size: 2, Timestamp: time.Date(2024, 1, 2, 5, 0, 0, 7_000_000, time.FixedZone("X", 2*3600))},
			},
			expected: []string{
				"timestamp,symbol,price,size",
				"2024-01-02T03:00:00.007Z,btcusdt,1,2",
			},
			description: "Should convert timestamps to UTC",
		},
		{
			name: "Tiny and large numbers",
			ticks: []model.Tick{
				{Symbol: "pepeusdt", Price: 0.00000123, Size: 15000000, Timestamp: time.UnixMilli(0).UTC()},
			},
			expected: []string{
				"timestamp,symbol,price,size",
				"1970-01-01T00:00:00.000Z,pepeusdt,0.00000123,15000000",
			},
			description: "Should never use exponent notation",
		},
		{
			name:        "Empty",
			ticks:       nil,
			expectError: ErrNoData,
			description: "Should refuse to render an empty export",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := WriteTicks(&buf, tt.ticks)
			if tt.expectError != nil {
				assert.True(t, errors.Is(err, tt.expectError), tt.description)
				assert.Zero(t, buf.Len(), "Nothing is written for an empty export")
				return
			}

			require.NoError(t, err, tt.description)
			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			assert.Equal(t, tt.expected, lines, tt.description)
		})
	}
}

// failingWriter fails every write
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

// Test_WriteTicks_WriterError tests that write failures surface
func Test_WriteTicks_WriterError(t *testing.T) {
	err := WriteTicks(failingWriter{}, createTestTicks())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write ticks")
}

// Test_Filename tests attachment naming
func Test_Filename(t *testing.T) {
	assert.Equal(t, "ticks.csv", Filename(""))
	assert.Equal(t, "btcusdt.csv", Filename("btcusdt"))
}
