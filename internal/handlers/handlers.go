package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Brownie44l1/fabric-inspector/internal/history"
	"github.com/Brownie44l1/fabric-inspector/internal/model"
	"github.com/Brownie44l1/fabric-inspector/internal/pipeline"
	"github.com/Brownie44l1/fabric-inspector/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// AnnotatedPrefix is where annotated images are served from.
const AnnotatedPrefix = "/static/annotated/"

// multipartMemory is how much of a form is buffered in memory before parts
// spill to temporary files.
const multipartMemory = 10 << 20

type Processor interface {
	Process(ctx context.Context, f pipeline.File) (pipeline.Record, error)
	ProcessAll(ctx context.Context, files []pipeline.File) ([]pipeline.Record, error)
}

type Predictor interface {
	Predict(inputData []float32) (model.Classification, error)
}

type HistoryLister interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

type Options struct {
	AnnotatedDir   string
	MaxUploadBytes int64
}

type Handler struct {
	processor Processor
	predictor Predictor
	history   HistoryLister
	opts      Options
	log       zerolog.Logger
}

func NewHandler(processor Processor, predictor Predictor, hist HistoryLister, opts Options, log zerolog.Logger) *Handler {
	return &Handler{
		processor: processor,
		predictor: predictor,
		history:   hist,
		opts:      opts,
		log:       log,
	}
}

type indexPage struct {
	Results []pipeline.Record
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Index renders the upload form and, on POST, the results for every file in
// the "files" field.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.render(w, indexPage{})
		return
	}

	if !h.parseForm(w, r) {
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	files, closeAll, err := openParts(headers)
	defer closeAll()
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to open upload")
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	records, err := h.processor.ProcessAll(r.Context(), files)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Int("processed", len(records)).Msg("upload processing failed")
		http.Error(w, "Failed to process upload", http.StatusInternalServerError)
		return
	}

	h.render(w, indexPage{Results: records})
}

// Retrieve permanently redirects /uploads/{name} to the annotated copy.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !storage.ValidID(name) {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, AnnotatedPrefix+url.PathEscape(name), http.StatusMovedPermanently)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	result, err := h.predictor.Predict(req.Image)
	if errors.Is(err, model.ErrInputSize) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("prediction failed")
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result.Response())
}

// PredictFromImage classifies and annotates the single file in the "image"
// field and answers with JSON.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	hlog.FromRequest(r).Debug().Str("filename", header.Filename).Int64("bytes", header.Size).Msg("received file")

	rec, err := h.processor.Process(r.Context(), pipeline.File{Filename: header.Filename, Body: file})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("filename", header.Filename).Msg("prediction failed")
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// History lists recent predictions; ?limit= caps the count (default 20).
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list history")
		http.Error(w, "Failed to read history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// parseForm enforces the upload limit. It writes the error response itself
// and reports whether the handler should continue.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if r.ContentLength > h.opts.MaxUploadBytes {
		http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	err := r.ParseMultipartForm(multipartMemory)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, http.ErrNotMultipart):
		http.Error(w, "No files uploaded", http.StatusBadRequest)
	default:
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
	}
	return false
}

func (h *Handler) render(w http.ResponseWriter, page indexPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		h.log.Error().Err(err).Msg("render index")
	}
}

func openParts(headers []*multipart.FileHeader) ([]pipeline.File, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	files := make([]pipeline.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, errors.Wrapf(err, "open part %s", fh.Filename)
		}
		opened = append(opened, f)
		files = append(files, pipeline.File{Filename: fh.Filename, Body: f})
	}
	return files, closeAll, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
