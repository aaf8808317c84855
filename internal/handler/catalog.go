package handler

import (
	"database/sql"
	"net/http"

	"github.com/pompom/go-box-store/internal/store"
	"github.com/pompom/go-box-store/pkg/response"
	"github.com/rs/zerolog"
)

type CatalogHandler struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCatalogHandler(db *sql.DB, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{db: db, logger: logger}
}

func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	result, err := store.ListProducts(r.Context(), h.db, page, pageSize)
	if err != nil {
		h.logger.Error().Err(err).Msg("List products failed")
		response.Error(w, mapStoreError(err))
		return
	}

	response.OK(w, result)
}
