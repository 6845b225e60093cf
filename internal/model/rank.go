package model

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
)

// Softmax converts raw logits to probabilities in place and returns them.
func Softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return scores
	}

	maxVal := scores[0]
	for _, v := range scores[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float32
	for i, v := range scores {
		scores[i] = math32.Exp(v - maxVal)
		sum += scores[i]
	}
	for i := range scores {
		scores[i] /= sum
	}
	return scores
}

// Rank orders class scores by descending confidence and keeps the first k.
// Equal scores keep the lower class id first. A k <= 0 keeps every class.
// Scores without a name in names are labelled class_<id>.
func Rank(scores []float32, names []string, k int) Classification {
	res := Classification{Names: names}

	preds := make([]Prediction, len(scores))
	for i, score := range scores {
		preds[i] = Prediction{ClassID: i, Class: res.ClassName(i), Confidence: score}
	}

	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Confidence > preds[j].Confidence
	})

	if k > 0 && k < len(preds) {
		preds = preds[:k]
	}

	res.Predictions = preds
	return res
}

// ClassName resolves a class id against the lookup table.
func (c Classification) ClassName(id int) string {
	if id < 0 || id >= len(c.Names) {
		return fmt.Sprintf("class_%d", id)
	}
	return c.Names[id]
}
