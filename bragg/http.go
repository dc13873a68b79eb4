package bragg

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/quentinglorieux/Bragg-omega/util"
)

// HTTPWrapper exposes a Controller over HTTP so lab clients in any language
// can watch or drive the experiment
type HTTPWrapper struct {
	c      *Controller
	router chi.Router
}

// NewHTTPWrapper returns an HTTPWrapper with its routes bound
func NewHTTPWrapper(c *Controller) *HTTPWrapper {
	h := &HTTPWrapper{c: c}
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Get("/status", h.Status)
	r.Get("/results", h.LastResults)
	r.Post("/run", h.Run)
	h.router = r
	return h
}

// ServeHTTP satisfies http.Handler
func (h *HTTPWrapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Status reports the controller's phase and how many records the last run
// produced
func (h *HTTPWrapper) Status(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		State string `json:"state"`
		Steps int    `json:"steps"`
	}{State: h.c.State().String(), Steps: len(h.c.Results())}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// LastResults returns the records collected by the most recent run
func (h *HTTPWrapper) LastResults(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.c.Results())
}

// runRequest is the body accepted by Run
type runRequest struct {
	Steps        int     `json:"steps"`
	DelaySeconds float64 `json:"delaySeconds"`
}

// Run executes the acquisition loop and returns its records.  The
// controller must already be configured and not mid-run; driving it out
// of order or concurrently yields 409 Conflict.
func (h *HTTPWrapper) Run(w http.ResponseWriter, r *http.Request) {
	req := runRequest{Steps: 5}
	err := json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	results, err := h.c.Run(req.Steps, util.SecsToDuration(req.DelaySeconds))
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrSequence) || errors.Is(err, ErrBusy) {
			code = http.StatusConflict
		}
		http.Error(w, err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}
