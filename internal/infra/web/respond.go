package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"saas-billing/internal/domain"
)

// apiResponse is the envelope every admin endpoint answers with.
type apiResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
}

type pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newPagination(page, pageSize, total int) *pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return &pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: message, Data: data})
}

func writePage(w http.ResponseWriter, data any, p *pagination) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data, Pagination: p})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Message: message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Anything the
// taxonomy does not name is a 500 with a generic message; internals never
// leak to the admin console.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoActiveSubscription):
		writeError(w, http.StatusNotFound, "user has no active subscription")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnknownFeature):
		writeError(w, http.StatusBadRequest, "unknown feature code")
	case errors.Is(err, domain.ErrInvalidQuotaValue):
		writeError(w, http.StatusBadRequest, "quota value must be -1 or greater")
	case errors.Is(err, domain.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "duration must be between 1 and 3650 days")
	case errors.Is(err, domain.ErrAlreadyFreePlan):
		writeError(w, http.StatusConflict, "subscription is already on the free plan")
	case errors.Is(err, domain.ErrAlreadyPaused):
		writeError(w, http.StatusConflict, "subscription is already paused")
	case errors.Is(err, domain.ErrNotPaused):
		writeError(w, http.StatusConflict, "subscription is not paused")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid argument")
	default:
		writeError(w, http.StatusInternalServerError, "operation failed")
	}
}
