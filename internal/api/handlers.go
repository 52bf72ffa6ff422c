package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kborae/catalog-crawler/internal/database"
	"github.com/kborae/catalog-crawler/internal/jobs"
)

type Handlers struct {
	jobs     *jobs.Manager
	products *database.ProductRepo
	logger   *slog.Logger
}

func NewHandlers(jobs *jobs.Manager, products *database.ProductRepo, logger *slog.Logger) *Handlers {
	return &Handlers{
		jobs:     jobs,
		products: products,
		logger:   logger,
	}
}

func (h *Handlers) Routes(r chi.Router) {
	r.Post("/jobs", h.CreateJob)
	r.Get("/jobs/{id}", h.GetJob)
	r.Get("/products/{goodsNo}", h.GetProduct)
}

type CreateJobRequest struct {
	GoodsNos []string `json:"goods_nos"`
}

func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.GoodsNos) == 0 {
		h.respondError(w, http.StatusBadRequest, "goods_nos is required")
		return
	}

	job, err := h.jobs.Submit(r.Context(), req.GoodsNos)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.jobs.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job", "id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	goodsNo := chi.URLParam(r, "goodsNo")
	if goodsNo == "" {
		h.respondError(w, http.StatusBadRequest, "goods number is required")
		return
	}

	product, err := h.products.Get(r.Context(), goodsNo)
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to get product", "goods_no", goodsNo, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
