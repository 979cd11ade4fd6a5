package handler

import (
	"net/http"

	"github.com/mcoot/echorelay/internal/api/request"
	"github.com/mcoot/echorelay/internal/api/response"
	"github.com/mcoot/echorelay/internal/services/accounts"
)

// AccountHandler handles account endpoints
type AccountHandler struct {
	accounts *accounts.Controller
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *accounts.Controller) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// List handles GET /accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := request.Page(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	ids, err := h.accounts.List(r.Context(), page)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AccountIDs(ids))
}

// Save handles POST /accounts
func (h *AccountHandler) Save(w http.ResponseWriter, r *http.Request) {
	doc, err := request.ReadDocument(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	account, err := h.accounts.Save(r.Context(), doc)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, account.Document)
}

// Get handles GET /accounts/{id}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.AccountID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, account.Document)
}

// Merge handles POST /accounts/{id}
func (h *AccountHandler) Merge(w http.ResponseWriter, r *http.Request) {
	id, err := request.AccountID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	patch, err := request.ReadDocument(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	account, err := h.accounts.Merge(r.Context(), id, patch)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, account.Document)
}

// Delete handles DELETE /accounts/{id}
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.AccountID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	account, err := h.accounts.Delete(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, account.Document)
}
