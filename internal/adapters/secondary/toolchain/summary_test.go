package toolchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frozenSummary = `Found 1 possible inputs: (name=images, type=float(1), shape=[?,784]) 
No variables spotted.
Found 2 possible outputs: (name=head/predictions/class_ids, op=ArgMax) (name=head/predictions/probabilities, op=Softmax) 
Found 1083268 (1.08M) const parameters, 0 (0) variable parameters, and 0 control_edges
Op types used: 27 Const, 12 Identity, 4 BiasAdd, 3 MatMul, 2 Relu, 1 ArgMax, 1 Placeholder, 1 Softmax
To use with tensorflow/tools/benchmark:benchmark_model try these arguments:
bazel run tensorflow/tools/benchmark:benchmark_model -- --graph=frozen_model.pb --show_flops --input_layer=images
`

func TestParseGraphSummary(t *testing.T) {
	s, err := ParseGraphSummary(frozenSummary)
	require.NoError(t, err)

	assert.Equal(t, []string{"images"}, s.Inputs)
	assert.Equal(t, []string{"head/predictions/class_ids", "head/predictions/probabilities"}, s.Outputs)
	assert.Equal(t, int64(1083268), s.ConstParameters)
	assert.Equal(t, 51, s.NodeCount)
	assert.Equal(t, 12, s.OpCount("Identity"))
	assert.Equal(t, 27, s.OpCount("Const"))
	assert.Equal(t, 0, s.OpCount("Dequantize"))
}

func TestParseGraphSummary_NoOps(t *testing.T) {
	_, err := ParseGraphSummary("No variables spotted.\n")
	assert.Error(t, err)
}

func TestParseGraphSummary_BadCount(t *testing.T) {
	_, err := ParseGraphSummary("Op types used: many Const\n")
	assert.Error(t, err)
}
