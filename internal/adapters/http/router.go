package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/leafwatch/plant-admin/internal/config"
	"github.com/leafwatch/plant-admin/internal/core/domain"
	"github.com/leafwatch/plant-admin/internal/core/ports"
	"github.com/leafwatch/plant-admin/internal/core/usecase"
	"github.com/leafwatch/plant-admin/internal/observability/metrics"
)

const serviceName = "plant-admin-api"

const (
	maxInFlightRequests = 128
	backpressureWait    = 50 * time.Millisecond
)

type Router struct {
	history   *usecase.HistoryAggregator
	exporter  *usecase.HistoryExporter
	analytics ports.AnalyticsService
	overview  ports.OverviewService
	profile   ports.ProfileService
	auth      ports.AuthProvider
	metrics   *metrics.HTTPServerMetrics
	cfg       config.Config
}

func NewRouter(
	history *usecase.HistoryAggregator,
	exporter *usecase.HistoryExporter,
	analytics ports.AnalyticsService,
	overview ports.OverviewService,
	profile ports.ProfileService,
	auth ports.AuthProvider,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg config.Config,
) *Router {
	return &Router{
		history:   history,
		exporter:  exporter,
		analytics: analytics,
		overview:  overview,
		profile:   profile,
		auth:      auth,
		metrics:   serverMetrics,
		cfg:       cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/auth/login", rt.login)
	mux.HandleFunc("/v1/auth/password", rt.changePassword)
	mux.HandleFunc("/v1/overview", rt.getOverview)
	mux.HandleFunc("/v1/history", rt.getHistory)
	mux.HandleFunc("/v1/history/delete", rt.bulkDeleteHistory)
	mux.HandleFunc("/v1/history/export", rt.exportHistory)
	mux.HandleFunc("/v1/history/", rt.deleteHistoryRecord)
	mux.HandleFunc("/v1/analytics", rt.getAnalytics)
	mux.HandleFunc("/v1/profile", rt.handleProfile)

	handler := rt.authMiddleware(mux)
	handler = backpressureMiddleware(handler, maxInFlightRequests, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	session, token, err := rt.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": "invalid credentials"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"user_id": session.UserID,
		"email":   session.Email,
	})
}

func (rt *Router) changePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session required"})
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if err := rt.profile.ChangePassword(r.Context(), session, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.overview.Load(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) getHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	query := r.URL.Query()
	ascending := query.Get("sort") == "asc"
	rt.history.SetSearch(query.Get("search"))

	if err := rt.history.Load(r.Context(), ascending); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	view := rt.history.View(pageParam(query.Get("page")))
	rt.metrics.RecordHistoryLoad(serviceName, len(view.Records))
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) deleteHistoryRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/history/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "record id is required"})
		return
	}

	if err := rt.history.Delete(r.Context(), id); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordDeletes(serviceName, "single", 1)
	writeJSON(w, http.StatusOK, rt.history.View(pageParam(r.URL.Query().Get("page"))))
}

func (rt *Router) bulkDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one record id is required"})
		return
	}

	// Replace the server-side selection with the posted id set, then run
	// the selection-based bulk delete. The set must be deduplicated first:
	// a repeated id would toggle on and straight back off.
	seen := make(map[string]struct{}, len(req.IDs))
	unique := make([]string, 0, len(req.IDs))
	for _, id := range req.IDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	page := pageParam(r.URL.Query().Get("page"))
	for _, id := range rt.history.View(page).Selected {
		rt.history.ToggleSelect(id)
	}
	for _, id := range unique {
		rt.history.ToggleSelect(id)
	}

	if err := rt.history.DeleteSelected(r.Context()); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordDeletes(serviceName, "bulk", len(unique))
	writeJSON(w, http.StatusOK, rt.history.View(page))
}

func (rt *Router) exportHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var buf bytes.Buffer
	count, err := rt.exporter.WriteXLSX(&buf)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordExport(serviceName)
	filename := "history-" + time.Now().Format("2006-01-02") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("X-Exported-Records", strconv.Itoa(count))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) getAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.analytics.SetPeriod(period)
	if err := rt.analytics.Load(r.Context()); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period":  period,
		"metrics": rt.analytics.Metrics(),
		"chart":   rt.analytics.Buckets(),
		"pie":     rt.analytics.PieSeries(),
	})
}

func (rt *Router) handleProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := rt.profile.Load(r.Context(), session)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodPut:
		var profile domain.Profile
		if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		saved, err := rt.profile.Save(r.Context(), session, profile)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func pageParam(value string) int {
	page, err := strconv.Atoi(value)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
