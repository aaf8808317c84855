package handler

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/pompom/go-box-store/internal/middleware"
	"github.com/pompom/go-box-store/internal/store"
	"github.com/pompom/go-box-store/pkg/apierror"
	"github.com/pompom/go-box-store/pkg/response"
	"github.com/rs/zerolog"
)

type AccountHandler struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAccountHandler(db *sql.DB, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{db: db, logger: logger}
}

func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	user, err := store.GetUser(r.Context(), h.db, userID)
	if err != nil {
		response.Error(w, mapStoreError(err))
		return
	}

	response.OK(w, map[string]interface{}{
		"balance": user.AccountBalance,
	})
}

func (h *AccountHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	page, pageSize := parsePagination(r)
	result, err := store.ListUserInventory(r.Context(), h.db, userID, page, pageSize)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("List inventory failed")
		response.Error(w, mapStoreError(err))
		return
	}

	response.OK(w, result)
}

func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := store.ListTransactionsCursor(r.Context(), h.db, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("List transactions failed")
		response.Error(w, mapStoreError(err))
		return
	}

	response.OK(w, result)
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
