package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLatencyStats(t *testing.T) {
	samples := make([]time.Duration, 0, 100)
	for i := 100; i >= 1; i-- {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}

	stats := ComputeLatencyStats(samples)
	assert.Equal(t, 100, stats.Count)
	assert.Equal(t, time.Millisecond, stats.Min)
	assert.Equal(t, 100*time.Millisecond, stats.Max)
	assert.Equal(t, 50*time.Millisecond, stats.P50)
	assert.Equal(t, 95*time.Millisecond, stats.P95)
	assert.Equal(t, 99*time.Millisecond, stats.P99)
	assert.Equal(t, 5050*time.Millisecond, stats.Total)
	assert.Equal(t, 50500*time.Microsecond, stats.Mean)

	// input is left untouched
	assert.Equal(t, 100*time.Millisecond, samples[0])
}

func TestComputeLatencyStats_Empty(t *testing.T) {
	assert.Equal(t, LatencyStats{}, ComputeLatencyStats(nil))
}

func TestComputeLatencyStats_Single(t *testing.T) {
	stats := ComputeLatencyStats([]time.Duration{3 * time.Millisecond})
	assert.Equal(t, 3*time.Millisecond, stats.P50)
	assert.Equal(t, 3*time.Millisecond, stats.P99)
}

func TestBenchmarkResult_Throughput(t *testing.T) {
	b, err := NewBenchmarkResult("mnist", 0, "http://localhost:8501")
	require.NoError(t, err)
	assert.Zero(t, b.Throughput())

	b.Requests = 50
	b.Elapsed = 2 * time.Second
	assert.InDelta(t, 25.0, b.Throughput(), 1e-9)
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestPredictedClass(t *testing.T) {
	tests := []struct {
		name string
		in   string
		key  string
		want int64
	}{
		{"scalar", `7`, "", 7},
		{"single element", `[3]`, "", 3},
		{"scores argmax", `[0.1, 0.7, 0.2]`, "", 1},
		{"named class ids", `{"class_ids": [4], "probabilities": [0.9, 0.1]}`, "", 4},
		{"named probabilities", `{"probabilities": [0.1, 0.2, 0.7]}`, "", 2},
		{"explicit key", `{"class_ids": [4], "scores": [0.9, 0.1]}`, "scores", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PredictedClass(raw(tt.in), tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := PredictedClass(raw(`"cat"`), "")
	assert.Error(t, err)
	_, err = PredictedClass(raw(`{"other": 1}`), "")
	assert.Error(t, err)
	_, err = PredictedClass(raw(`[]`), "")
	assert.Error(t, err)
}

func TestAccuracy(t *testing.T) {
	preds := []json.RawMessage{raw(`[0.9, 0.1]`), raw(`[0.2, 0.8]`), raw(`[0.6, 0.4]`), raw(`[0.3, 0.7]`)}

	acc, err := Accuracy(preds, []int64{0, 1, 1, 1}, "")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-9)

	_, err = Accuracy(preds, []int64{0}, "")
	assert.ErrorIs(t, err, ErrLabelMismatch)
}

func TestParseInstanceSet(t *testing.T) {
	set, err := ParseInstanceSet([]byte(`{"instances": [[0.0, 1.0], [1.0, 0.0]], "labels": [1, 0]}`))
	require.NoError(t, err)
	assert.Len(t, set.Instances, 2)
	assert.Equal(t, []int64{1, 0}, set.Labels)

	_, err = ParseInstanceSet([]byte(`{"instances": []}`))
	assert.ErrorIs(t, err, ErrNoInstances)

	_, err = ParseInstanceSet([]byte(`{"instances": [[0]], "labels": [1, 2]}`))
	assert.ErrorIs(t, err, ErrLabelMismatch)

	_, err = ParseInstanceSet([]byte(`not json`))
	assert.Error(t, err)
}
