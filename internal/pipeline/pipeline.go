// Package pipeline runs the per-upload sequence: store the original, decode
// it once, classify it, annotate a copy and persist that copy.
package pipeline

import (
	"context"
	"io"
	"path"

	"github.com/Brownie44l1/fabric-inspector/internal/annotate"
	"github.com/Brownie44l1/fabric-inspector/internal/history"
	"github.com/Brownie44l1/fabric-inspector/internal/model"
	"github.com/Brownie44l1/fabric-inspector/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// RetrievalPrefix is the URL prefix that redirects to annotated images.
const RetrievalPrefix = "/uploads/"

var ErrNoFiles = errors.New("no files uploaded")

// Classifier is the model collaborator: a decoded upload in, a ranked
// classification out.
type Classifier interface {
	ClassifyFrame(ctx context.Context, f model.Frame) (model.Classification, error)
}

// File is one uploaded part.
type File struct {
	Filename string
	Body     io.Reader
}

// Record is what the results page shows for one upload.
type Record struct {
	ID            string               `json:"id"`
	Filename      string               `json:"filename"`
	AnnotatedPath string               `json:"-"`
	AnnotatedURL  string               `json:"annotated_url"`
	Labels        []string             `json:"top5_labels"`
	Top           model.Prediction     `json:"top"`
	Result        model.Classification `json:"result"`
}

type Processor struct {
	store      *storage.Store
	classifier Classifier
	annotator  *annotate.Annotator
	recorder   history.Recorder
	log        zerolog.Logger
}

func New(store *storage.Store, classifier Classifier, annotator *annotate.Annotator, recorder history.Recorder, log zerolog.Logger) *Processor {
	if recorder == nil {
		recorder = history.Nop{}
	}
	return &Processor{
		store:      store,
		classifier: classifier,
		annotator:  annotator,
		recorder:   recorder,
		log:        log,
	}
}

// Process handles a single upload end to end.
func (p *Processor) Process(ctx context.Context, f File) (Record, error) {
	up, err := p.store.SaveUpload(f.Filename, f.Body)
	if err != nil {
		return Record{}, err
	}

	log := p.log.With().Str("id", up.ID).Str("filename", up.Filename).Logger()
	log.Debug().Int64("bytes", up.Size).Msg("saved upload")

	frame, err := model.LoadFrame(up.Path)
	if err != nil {
		return Record{}, errors.Wrapf(err, "load %s", up.Filename)
	}
	defer frame.Close()

	res, err := p.classifier.ClassifyFrame(ctx, frame)
	if err != nil {
		return Record{}, errors.Wrapf(err, "classify %s", up.Filename)
	}

	ann, err := p.annotator.Annotate(frame.Mat, res)
	if err != nil {
		return Record{}, errors.Wrapf(err, "annotate %s", up.Filename)
	}
	defer ann.Image.Close()

	annotatedPath, err := p.store.WriteAnnotated(up.ID, ann.Image)
	if err != nil {
		return Record{}, err
	}

	top, _ := res.Top()
	rec := Record{
		ID:            up.ID,
		Filename:      up.Filename,
		AnnotatedPath: annotatedPath,
		AnnotatedURL:  path.Join(RetrievalPrefix, up.ID),
		Labels:        ann.Labels,
		Top:           top,
		Result:        res,
	}

	err = p.recorder.Record(ctx, history.Entry{
		ID:         rec.ID,
		Filename:   rec.Filename,
		TopClass:   top.Class,
		Confidence: top.Confidence,
		Labels:     rec.Labels,
	})
	if err != nil {
		log.Warn().Err(err).Msg("history write failed")
	}

	log.Info().Str("class", top.Class).Float32("confidence", top.Confidence).Msg("classified upload")
	return rec, nil
}

// ProcessAll handles uploads strictly in order. Parts with an empty filename
// are skipped; the first failure aborts the batch.
func (p *Processor) ProcessAll(ctx context.Context, files []File) ([]Record, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	records := make([]Record, 0, len(files))
	for _, f := range files {
		if f.Filename == "" {
			continue
		}
		rec, err := p.Process(ctx, f)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}
