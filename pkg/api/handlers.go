// Package api serves the read-only status surface: latest readings and
// reading history per product, backed by the SQLite history log, with the
// interactive docs page on the root path. Errors follow RFC 7807.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	scalargo "github.com/bdpiprava/scalar-go"

	"stockwatch/pkg/history"
	"stockwatch/pkg/models"
)

const defaultHistoryLimit = 50

// HistoryReader is the slice of the history log the API consumes.
type HistoryReader interface {
	Latest(product string) (models.Snapshot, time.Time, error)
	Recent(product string, limit int) ([]history.Entry, error)
}

type Handler struct {
	readings HistoryReader
	products []models.Product
	specDir  string
}

func NewHandler(readings HistoryReader, products []models.Product, specDir string) *Handler {
	return &Handler{readings: readings, products: products, specDir: specDir}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/products/") {
		h.productHandler(w, r)
		return
	}

	// Serve Scalar docs on root path
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir(h.specDir),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("Stockwatch API"),
		),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func (h *Handler) productHandler(w http.ResponseWriter, r *http.Request) {
	// Path expected: /products/{label}/stock or /products/{label}/history
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) != 4 || parts[2] == "" {
		WriteBadRequest(w, "Invalid path. Expected /products/{label}/stock or /products/{label}/history", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		WriteBadRequest(w, "Method not allowed. Use GET.", r.URL.Path)
		return
	}

	label := parts[2]
	if !h.knownProduct(label) {
		WriteNotFound(w, fmt.Sprintf("Product not monitored: %s", label), r.URL.Path)
		return
	}

	switch parts[3] {
	case "stock":
		h.handleStock(w, r, label)
	case "history":
		h.handleHistory(w, r, label)
	default:
		WriteBadRequest(w, "Invalid path. Expected /products/{label}/stock or /products/{label}/history", r.URL.Path)
	}
}

type stockResponse struct {
	Product   string          `json:"product"`
	CheckedAt time.Time       `json:"checked_at"`
	Readings  models.Snapshot `json:"readings"`
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request, label string) {
	readings, at, err := h.readings.Latest(label)
	if errors.Is(err, history.ErrNoReadings) {
		WriteNotFound(w, fmt.Sprintf("No readings recorded yet for %s", label), r.URL.Path)
		return
	}
	if err != nil {
		WriteInternalServerError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, r, stockResponse{Product: label, CheckedAt: at, Readings: readings})
}

type historyResponse struct {
	Product string          `json:"product"`
	Entries []history.Entry `json:"entries"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, label string) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteBadRequest(w, fmt.Sprintf("Invalid limit: %s", raw), r.URL.Path)
			return
		}
		limit = parsed
	}

	entries, err := h.readings.Recent(label, limit)
	if err != nil {
		WriteInternalServerError(w, err, r.URL.Path)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, r, historyResponse{Product: label, Entries: entries})
}

func (h *Handler) knownProduct(label string) bool {
	for _, p := range h.products {
		if p.Label == label {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
		WriteInternalServerError(w, fmt.Errorf("failed to encode response"), r.URL.Path)
	}
}
