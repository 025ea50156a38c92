package web

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/usecase"
)

type upgradeRequest struct {
	NewPlanID string `json:"newPlanId"`
	Reason    string `json:"reason"`
}

type extendRequest struct {
	DaysToAdd int    `json:"daysToAdd"`
	Reason    string `json:"reason"`
}

type adjustQuotaRequest struct {
	FeatureCode string `json:"featureCode"`
	NewValue    int    `json:"newValue"`
	IsPermanent bool   `json:"isPermanent"`
	Reason      string `json:"reason"`
}

type resetQuotaRequest struct {
	FeatureCode string `json:"featureCode"`
	Reason      string `json:"reason"`
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

type cancelRequest struct {
	Immediate bool   `json:"immediate"`
	Reason    string `json:"reason"`
}

type giftRequest struct {
	PlanID       string `json:"planId"`
	DurationDays int    `json:"durationDays"`
	Reason       string `json:"reason"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// actionMeta captures who did it and from where for the audit ledger.
func actionMeta(r *http.Request) usecase.ActionMeta {
	meta := usecase.ActionMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if claims := AdminFromContext(r.Context()); claims != nil {
		meta.AdminID = claims.AdminID
	}
	return meta
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func detailHandler(lifecycleUC usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		detail, err := lifecycleUC.Detail(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "", detail)
	}
}

func historyHandler(lifecycleUC usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		if page < 1 {
			page = 1
		}
		if pageSize <= 0 || pageSize > 100 {
			pageSize = 20
		}

		rows, total, err := lifecycleUC.History(r.Context(), userID, page, pageSize)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writePage(w, rows, newPagination(page, pageSize, total))
	}
}

func upgradeHandler(lifecycleUC usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req upgradeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.NewPlanID == "" {
			writeError(w, http.StatusBadRequest, "newPlanId is required")
			return
		}

		if err := lifecycleUC.UpgradePlan(r.Context(), userID, req.NewPlanID, req.Reason, actionMeta(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "subscription upgraded", nil)
	}
}

func extendHandler(lifecycleUC usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req extendRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := lifecycleUC.ExtendSubscription(r.Context(), userID, req.DaysToAdd, req.Reason, actionMeta(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "subscription extended", nil)
	}
}

func adjustQuotaHandler(lifecycleUC usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req adjustQuotaRequest
		if !decodeBody(w, r, &req) {
			return
		}

		code := model.FeatureCode(req.FeatureCode)
		if err := lifecycleUC.AdjustQuota(r.Context(), userID, code, req.NewValue, req.IsPermanent, req.Reason, actionMeta(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "quota adjusted", nil)
	}
}

func resetQuotaHandler(lifecycleUC usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req resetQuotaRequest
		if !decodeBody(w, r, &req) {
			return
		}

		code := model.FeatureCode(req.FeatureCode)
		if err := lifecycleUC.ResetQuota(r.Context(), userID, code, req.Reason, actionMeta(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "usage reset", nil)
	}
}

func pauseHandler(lifecycleUC usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req pauseRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := lifecycleUC.PauseSubscription(r.Context(), userID, req.Reason, actionMeta(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "subscription paused", nil)
	}
}

func resumeHandler(lifecycleUC usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req pauseRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := lifecycleUC.ResumeSubscription(r.Context(), userID, req.Reason, actionMeta(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "subscription resumed", nil)
	}
}

func cancelHandler(lifecycleUC usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req cancelRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := lifecycleUC.CancelSubscription(r.Context(), userID, req.Immediate, req.Reason, actionMeta(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "subscription cancelled", nil)
	}
}

func giftHandler(lifecycleUC usecase.LifecycleUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req giftRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.PlanID == "" {
			writeError(w, http.StatusBadRequest, "planId is required")
			return
		}

		if err := lifecycleUC.GiftSubscription(r.Context(), userID, req.PlanID, req.DurationDays, req.Reason, actionMeta(r)); err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "subscription gifted", nil)
	}
}

func plansListHandler(planUC usecase.PlanUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := planUC.List(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "", plans)
	}
}

func planFeaturesHandler(planUC usecase.PlanUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		planID := chi.URLParam(r, "planID")
		features, err := planUC.Features(r.Context(), planID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, "", features)
	}
}
