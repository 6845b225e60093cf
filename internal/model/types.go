package model

// Metadata describes an exported classifier. It is read from the JSON file
// shipped next to the .onnx model.
type Metadata struct {
	InputShape   []int64  `json:"input_shape"`
	OutputShape  []int64  `json:"output_shape"`
	InputName    string   `json:"input_name"`
	OutputName   string   `json:"output_name"`
	Classes      []string `json:"classes"`
	ImageSize    int      `json:"image_size"`
	ApplySoftmax bool     `json:"apply_softmax"`
}

// InputSize is the number of float32 values the model expects per image.
func (m Metadata) InputSize() int {
	if len(m.InputShape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range m.InputShape {
		size *= int(dim)
	}
	return size
}

// Prediction is one ranked class/confidence pair.
type Prediction struct {
	ClassID    int     `json:"class_id"`
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
}

// Classification is the ranked output of a single inference. Predictions is
// ordered by descending confidence; Names maps class ids to class names.
type Classification struct {
	Predictions []Prediction `json:"predictions"`
	Names       []string     `json:"-"`
}

// Top returns the rank-1 prediction. ok is false for an empty result.
func (c Classification) Top() (Prediction, bool) {
	if len(c.Predictions) == 0 {
		return Prediction{}, false
	}
	return c.Predictions[0], true
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	Class       string       `json:"class"`
	Confidence  float32      `json:"confidence"`
	Predictions []Prediction `json:"predictions"`
}

// Response flattens a classification into the JSON shape served by the API.
func (c Classification) Response() PredictionResponse {
	top, _ := c.Top()
	return PredictionResponse{
		Class:       top.Class,
		Confidence:  top.Confidence,
		Predictions: c.Predictions,
	}
}
