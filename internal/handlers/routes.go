package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// accessLog logs one line per request through the request's logger, which
// carries the request id.
func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

// Routes wires every endpoint onto a fresh mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /{$}", h.Index)
	mux.HandleFunc("GET /uploads/{name}", h.Retrieve)
	mux.Handle("GET "+AnnotatedPrefix,
		http.StripPrefix(AnnotatedPrefix, http.FileServer(http.Dir(h.opts.AnnotatedDir))))

	mux.HandleFunc("GET /health", enableCORS(h.Health))
	if h.history != nil {
		mux.HandleFunc("GET /history", enableCORS(h.History))
	}
	mux.HandleFunc("POST /predict", enableCORS(h.Predict))
	mux.HandleFunc("OPTIONS /predict", enableCORS(h.Predict))
	mux.HandleFunc("POST /predict/image", enableCORS(h.PredictFromImage))
	mux.HandleFunc("OPTIONS /predict/image", enableCORS(h.PredictFromImage))

	var handler http.Handler = mux
	handler = hlog.AccessHandler(accessLog)(handler)
	handler = hlog.RequestIDHandler("req_id", "X-Request-Id")(handler)
	handler = hlog.NewHandler(h.log)(handler)
	return handler
}
