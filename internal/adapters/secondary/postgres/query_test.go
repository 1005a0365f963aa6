package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhereBuilder(t *testing.T) {
	w := &whereBuilder{}
	assert.Equal(t, "1=1", w.clause())

	w.add("model_name", "mnist")
	w.add("status", "FAILED")
	assert.Equal(t, "model_name = $1 AND status = $2", w.clause())
	assert.Equal(t, "LIMIT $3 OFFSET $4", w.page(20, 40))
	assert.Equal(t, []interface{}{"mnist", "FAILED", 20, 40}, w.args)
}

func TestWhereBuilder_NoLimit(t *testing.T) {
	w := &whereBuilder{}
	assert.Equal(t, "OFFSET $1", w.page(0, 5))
	assert.Equal(t, []interface{}{5}, w.args)
}

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS pipeline_run")
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS benchmark_result")
}
