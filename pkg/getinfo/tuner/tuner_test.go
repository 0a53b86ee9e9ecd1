package tuner

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	res, err := Detect()
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), res.CPUCores)
	assert.GreaterOrEqual(t, res.TotalRAM, int64(512<<20))
	assert.Positive(t, res.AvailableRAM)
	assert.LessOrEqual(t, res.AvailableRAM, res.TotalRAM)
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name string
		res  SystemResources
		want Tuning
	}{
		{
			name: "small system",
			res:  SystemResources{CPUCores: 2, TotalRAM: 4 << 30},
			want: Tuning{WalkWorkers: 8, HistoryWorkers: 2},
		},
		{
			name: "medium system",
			res:  SystemResources{CPUCores: 12, TotalRAM: 16 << 30},
			want: Tuning{WalkWorkers: 12, HistoryWorkers: 6},
		},
		{
			name: "large system is capped",
			res:  SystemResources{CPUCores: 128, TotalRAM: 512 << 30},
			want: Tuning{WalkWorkers: 64, HistoryWorkers: 8},
		},
		{
			name: "low memory caps the walk",
			res:  SystemResources{CPUCores: 16, TotalRAM: 1 << 30},
			want: Tuning{WalkWorkers: 8, HistoryWorkers: 8},
		},
		{
			name: "unknown memory is not low",
			res:  SystemResources{CPUCores: 16},
			want: Tuning{WalkWorkers: 16, HistoryWorkers: 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(tt.res))
		})
	}
}

func TestAuto_Stable(t *testing.T) {
	first := Auto()
	assert.GreaterOrEqual(t, first.WalkWorkers, minWalkWorkers)
	assert.GreaterOrEqual(t, first.HistoryWorkers, minHistoryWorkers)
	assert.Equal(t, first, Auto())
}
