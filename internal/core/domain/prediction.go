package domain

import (
	"encoding/json"
	"fmt"
)

// classKeys are tried in order when a prediction is a named-output object.
var classKeys = []string{"class_ids", "classes", "probabilities", "scores"}

// PredictedClass extracts a class id from one prediction. Scalars and
// single-element vectors are the class itself, longer vectors are scores and
// resolve to their argmax. Objects are looked up by outputKey, or by the
// usual classifier output names when outputKey is empty.
func PredictedClass(raw json.RawMessage, outputKey string) (int64, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("decode prediction: %w", err)
	}
	return classOf(v, outputKey)
}

func classOf(v interface{}, outputKey string) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case []interface{}:
		if len(t) == 0 {
			return 0, fmt.Errorf("empty prediction vector")
		}
		if len(t) == 1 {
			return classOf(t[0], outputKey)
		}
		best, bestIdx := 0.0, -1
		for i, e := range t {
			f, ok := e.(float64)
			if !ok {
				return 0, fmt.Errorf("prediction vector element %d is not numeric", i)
			}
			if bestIdx < 0 || f > best {
				best, bestIdx = f, i
			}
		}
		return int64(bestIdx), nil
	case map[string]interface{}:
		keys := classKeys
		if outputKey != "" {
			keys = []string{outputKey}
		}
		for _, k := range keys {
			if inner, ok := t[k]; ok {
				return classOf(inner, "")
			}
		}
		return 0, fmt.Errorf("prediction has none of the outputs %v", keys)
	default:
		return 0, fmt.Errorf("unsupported prediction type %T", v)
	}
}

// Accuracy is the share of predictions whose class equals the label.
func Accuracy(predictions []json.RawMessage, labels []int64, outputKey string) (float64, error) {
	if len(predictions) != len(labels) {
		return 0, ErrLabelMismatch
	}
	if len(labels) == 0 {
		return 0, nil
	}
	correct := 0
	for i, p := range predictions {
		class, err := PredictedClass(p, outputKey)
		if err != nil {
			return 0, fmt.Errorf("prediction %d: %w", i, err)
		}
		if class == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}
