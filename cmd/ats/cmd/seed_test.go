package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTicksCSV(t *testing.T) {
	t.Parallel()

	in := strings.NewReader(
		"transaction_time,current_price,volume,open_price,high_price,low_price\n" +
			"2023-06-01 09:00:00,-1000,37,995,1002,990\n" +
			"2023-06-01 09:00:01,1010,12,1000,1010,1000\n")

	ticks, err := readTicksCSV(in, "233740")
	require.NoError(t, err)
	require.Len(t, ticks, 2)

	assert.Equal(t, "233740", ticks[0].Code)
	assert.Equal(t, -1000.0, ticks[0].Price, "sign normalization happens on replay, not load")
	assert.Equal(t, int64(37), ticks[0].Volume)
	assert.Equal(t, "2023-06-01 09:00:00", ticks[0].TransactionTime)
	assert.Equal(t, 1002.0, ticks[0].High)
	assert.Equal(t, 1010.0, ticks[1].Price)
}

func TestReadTicksCSVColumnOrderIrrelevant(t *testing.T) {
	t.Parallel()

	in := strings.NewReader(
		"current_price,transaction_time\n" +
			"1000,2023-06-01 09:00:00\n")

	ticks, err := readTicksCSV(in, "233740")
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, 1000.0, ticks[0].Price)
}

func TestReadTicksCSVRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "missing price column",
			in:   "transaction_time\n2023-06-01 09:00:00\n",
			want: `missing column "current_price"`,
		},
		{
			name: "bad transaction time",
			in:   "transaction_time,current_price\nyesterday,1000\n",
			want: "bad transaction_time",
		},
		{
			name: "bad price",
			in:   "transaction_time,current_price\n2023-06-01 09:00:00,cheap\n",
			want: "bad current_price",
		},
		{
			name: "no rows",
			in:   "transaction_time,current_price\n",
			want: "no tick rows",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := readTicksCSV(strings.NewReader(tt.in), "233740")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
