package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ytget/model-mirror/internal/metrics"
	"github.com/ytget/model-mirror/internal/model"
	"github.com/ytget/model-mirror/internal/search"
	"github.com/ytget/model-mirror/internal/store"
)

const maxRequestBody = 64 << 10

// uploadModelRequest accepts sketchfabUrl as an alias of sourceUrl
type uploadModelRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SourceURL    string `json:"sourceUrl"`
	SketchfabURL string `json:"sketchfabUrl"`
	ImgSmall     string `json:"imgSmall"`
	ImgLarge     string `json:"imgLarge"`
}

func (u uploadModelRequest) toUploadRequest() model.UploadRequest {
	src := u.SourceURL
	if src == "" {
		src = u.SketchfabURL
	}
	return model.UploadRequest{
		ID:        u.ID,
		Name:      u.Name,
		SourceURL: src,
		ImgSmall:  u.ImgSmall,
		ImgLarge:  u.ImgLarge,
	}
}

// hello handles GET /
func (s *Server) hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"hello": "World"})
}

// health handles GET /healthz
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// searchModels handles GET /api/models?search=&cursor=
func (s *Server) searchModels(w http.ResponseWriter, r *http.Request) {
	q := search.Query{Text: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err := strconv.Atoi(raw)
		if err != nil || cursor < 0 {
			s.writeError(w, r, &HTTPError{Status: http.StatusBadRequest, Message: "cursor must be a non-negative integer"})
			return
		}
		q.Cursor = cursor
	}

	results, err := s.searcher.Search(r.Context(), q)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		s.writeError(w, r, err)
		return
	}
	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()

	if results == nil {
		results = []model.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": results})
}

// uploadModel handles POST /api/upload-model. The run continues after the
// response is written.
func (s *Server) uploadModel(w http.ResponseWriter, r *http.Request) {
	var body uploadModelRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, &HTTPError{Status: http.StatusBadRequest, Message: "invalid JSON body"})
		return
	}

	run, err := s.uploader.Submit(r.Context(), body.toUploadRequest())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"done":  true,
		"runId": run.ID,
	})
}

// getModel handles GET /api/model/{id}
func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.Get(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, err)
		return
	}

	// a missing record is reported as null, not 404
	writeJSON(w, http.StatusOK, map[string]interface{}{"model": rec})
}

// listRuns handles GET /api/runs
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": s.uploader.GetAllRuns()})
}

// getRun handles GET /api/runs/{id}
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.uploader.GetRun(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, r, &HTTPError{Status: http.StatusNotFound, Message: "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, &HTTPError{Status: http.StatusNotFound, Message: "Not found"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, &HTTPError{Status: http.StatusMethodNotAllowed, Message: "Method not allowed"})
}
