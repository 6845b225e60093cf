package model

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// ErrInputSize is returned when a raw tensor has the wrong number of values.
var ErrInputSize = errors.New("unexpected input size")

// Options locates the model files and the onnxruntime shared library.
type Options struct {
	ModelPath         string
	MetadataPath      string
	SharedLibraryPath string
	TopK              int
}

// Server owns an onnxruntime session and the tensors bound to it. The
// tensors are shared, so inference calls are serialised.
type Server struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	topK         int
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// LoadMetadata reads and validates a model metadata file.
func LoadMetadata(path string) (Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "failed to read metadata")
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Metadata{}, errors.Wrap(err, "failed to parse metadata")
	}

	if metadata.InputName == "" {
		metadata.InputName = "input"
	}
	if metadata.OutputName == "" {
		metadata.OutputName = "output"
	}
	if len(metadata.Classes) == 0 {
		return Metadata{}, errors.New("metadata lists no classes")
	}
	if metadata.ImageSize <= 0 {
		return Metadata{}, errors.Errorf("metadata image_size must be positive, got %d", metadata.ImageSize)
	}
	if metadata.InputSize() != 3*metadata.ImageSize*metadata.ImageSize {
		return Metadata{}, errors.Errorf("input_shape %v does not match a 3x%dx%d image",
			metadata.InputShape, metadata.ImageSize, metadata.ImageSize)
	}

	return metadata, nil
}

func NewServer(opts Options) (*Server, error) {
	metadata, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	if opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX environment")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, errors.Wrap(err, "failed to create input tensor")
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, errors.Wrap(err, "failed to create output tensor")
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, errors.Wrap(err, "failed to create ONNX session")
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	return &Server{
		session:      session,
		Metadata:     metadata,
		topK:         topK,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Predict runs the model on an already preprocessed tensor and returns the
// top-K ranked classes.
func (s *Server) Predict(inputData []float32) (Classification, error) {
	if want := s.Metadata.InputSize(); len(inputData) != want {
		return Classification{}, errors.Wrapf(ErrInputSize, "expected %d values, got %d", want, len(inputData))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), inputData)

	if err := s.session.Run(); err != nil {
		return Classification{}, errors.Wrap(err, "inference failed")
	}

	out := s.outputTensor.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)

	if s.Metadata.ApplySoftmax {
		Softmax(scores)
	}

	return Rank(scores, s.Metadata.Classes, s.topK), nil
}

// ClassifyImage classifies an image held in Go memory.
func (s *Server) ClassifyImage(ctx context.Context, img image.Image) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	inputData, err := Preprocess(img, s.Metadata.ImageSize)
	if err != nil {
		return Classification{}, err
	}

	return s.Predict(inputData)
}

// ClassifyMat classifies a BGR Mat.
func (s *Server) ClassifyMat(ctx context.Context, mat gocv.Mat) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	inputData, err := Blob(mat, s.Metadata.ImageSize)
	if err != nil {
		return Classification{}, err
	}

	return s.Predict(inputData)
}

// ClassifyFrame classifies the pixels a frame was decoded to.
func (s *Server) ClassifyFrame(ctx context.Context, f Frame) (Classification, error) {
	if f.Image != nil {
		return s.ClassifyImage(ctx, f.Image)
	}
	return s.ClassifyMat(ctx, f.Mat)
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inputTensor != nil {
		s.inputTensor.Destroy()
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
		s.outputTensor = nil
	}
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	ort.DestroyEnvironment()
}
