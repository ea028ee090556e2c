package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/finquery/finquery/internal/core/ports"
	"github.com/finquery/finquery/internal/observability/metrics"
)

// Router exposes the document and question-answering API. Every request
// is scoped to the owner named in the X-User-Id header.
type Router struct {
	ingestor ports.DocumentIngestor
	query    ports.QueryService
	reader   ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
	service  string
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	query ports.QueryService,
	reader ports.DocumentReader,
	serverMetrics *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		ingestor: ingestor,
		query:    query,
		reader:   reader,
		metrics:  serverMetrics,
		service:  service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.documentByName)
	mux.HandleFunc("/v1/rag/query", rt.queryDocuments)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		ownerID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	docs, err := rt.reader.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) documentByName(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	docName := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if docName == "" {
		writeError(w, http.StatusBadRequest, "document name is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := rt.reader.GetByName(r.Context(), ownerID, docName)
		if err != nil {
			writeError(w, mapErrorToHTTPStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := rt.ingestor.Delete(r.Context(), ownerID, docName); err != nil {
			writeError(w, mapErrorToHTTPStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) queryDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req struct {
		Question  string   `json:"question"`
		Documents []string `json:"documents"`
		Limit     int      `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	answer, err := rt.query.Answer(r.Context(), ownerID, req.Documents, req.Question, req.Limit)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordQueryObservation(rt.service, len(answer.Sources), time.Since(start))
	}

	writeJSON(w, http.StatusOK, answer)
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := strings.TrimSpace(r.Header.Get(ownerIDHeader))
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "header X-User-Id is required")
		return "", false
	}
	return ownerID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
