// Package api exposes the HTTP surface: subscription management, notification
// queries, the system log, configuration endpoints, and the websocket relay.
package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/notifyhub/internal/bus"
	"github.com/gyaneshwarpardhi/notifyhub/internal/config"
	"github.com/gyaneshwarpardhi/notifyhub/internal/engine"
	"github.com/gyaneshwarpardhi/notifyhub/internal/hierarchy"
	"github.com/gyaneshwarpardhi/notifyhub/internal/metrics"
	"github.com/gyaneshwarpardhi/notifyhub/internal/notification"
	"github.com/gyaneshwarpardhi/notifyhub/internal/store"
	"github.com/gyaneshwarpardhi/notifyhub/internal/subscription"
)

const (
	userLimitDefault   = 50
	userLimitMax       = 200
	systemLimitDefault = 100
	systemLimitMax     = 500

	// demoUser stands in for real identity; auth is out of scope and
	// callers pass X-User-ID directly.
	demoUser = "user123"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	st     *store.SQLiteStore
	index  *subscription.Index
	eng    *engine.Engine
	loader *config.Loader
	bus    *bus.Bus
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes. bus may be nil, in
// which case the websocket relay reports unavailable.
func New(st *store.SQLiteStore, eng *engine.Engine, loader *config.Loader, b *bus.Bus) http.Handler {
	h := &Handler{
		st:     st,
		index:  subscription.NewIndex(st.Subscriptions()),
		eng:    eng,
		loader: loader,
		bus:    b,
		mux:    http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/subscriptions", h.upsertSubscription)
	h.mux.HandleFunc("GET /v1/subscriptions", h.listSubscriptions)
	h.mux.HandleFunc("GET /v1/subscriptions/check", h.checkSubscription)
	h.mux.HandleFunc("DELETE /v1/subscriptions/{id}", h.deleteSubscription)

	h.mux.HandleFunc("GET /v1/notifications", h.listNotifications)
	h.mux.HandleFunc("POST /v1/notifications/{id}/read", h.markRead)
	h.mux.HandleFunc("POST /v1/notifications/bulk-read", h.bulkMarkRead)

	h.mux.HandleFunc("GET /v1/system/notifications", h.systemNotifications)
	h.mux.HandleFunc("GET /v1/objects/hierarchy", h.objectHierarchy)

	h.mux.HandleFunc("GET /v1/config/severity-levels", h.severityLevels)
	h.mux.HandleFunc("GET /v1/config/event-types", h.eventTypes)
	h.mux.HandleFunc("GET /v1/config/ui", h.uiConfig)

	h.mux.HandleFunc("GET /v1/ws/notifications/{user}", h.notificationSocket)

	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// userID extracts the caller identity from the X-User-ID header, falling back
// to the demo user.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return demoUser
}

type subscriptionRequest struct {
	Path              string         `json:"path"`
	IncludeChildren   *bool          `json:"include_children"`
	NotificationTypes []string       `json:"notification_types"`
	Settings          map[string]any `json:"settings"`
}

// POST /v1/subscriptions — create a subscription, or update the existing one
// for the same (user, path) in place.
func (h *Handler) upsertSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// include_children defaults to true when omitted.
	includeChildren := true
	if req.IncludeChildren != nil {
		includeChildren = *req.IncludeChildren
	}

	user := userID(r)
	path := hierarchy.Normalize(req.Path)
	subs := h.st.Subscriptions()

	existing, err := subs.FindByUserAndPath(r.Context(), user, path)
	switch {
	case err == nil:
		existing.IncludeChildren = includeChildren
		existing.NotificationTypes = req.NotificationTypes
		existing.Settings = req.Settings
		if err := subs.Update(r.Context(), existing); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, existing)
	case errors.Is(err, subscription.ErrNotFound):
		sub := &subscription.Subscription{
			ID:                uuid.New().String(),
			UserID:            user,
			Path:              path,
			IncludeChildren:   includeChildren,
			NotificationTypes: req.NotificationTypes,
			Settings:          req.Settings,
			CreatedAt:         time.Now().UTC(),
		}
		if err := subs.Create(r.Context(), sub); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// GET /v1/subscriptions — the caller's subscriptions, optionally filtered by
// path prefix.
func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.st.Subscriptions().FindByUser(r.Context(), userID(r), r.URL.Query().Get("path_prefix"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if subs == nil {
		subs = []subscription.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GET /v1/subscriptions/check?path=... — direct and inherited coverage for a
// path.
func (h *Handler) checkSubscription(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	m, err := h.index.Check(r.Context(), userID(r), path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":                   m.Path,
		"is_subscribed":          m.Subscribed(),
		"direct_subscription":    m.Direct,
		"inherited_subscription": m.Inherited,
	})
}

// DELETE /v1/subscriptions/{id} — remove one of the caller's subscriptions.
// Notifications it produced are kept with their subscription reference
// cleared.
func (h *Handler) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	subs := h.st.Subscriptions()

	sub, err := subs.FindByID(r.Context(), id)
	if errors.Is(err, subscription.ErrNotFound) || (err == nil && sub.UserID != userID(r)) {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := subs.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// GET /v1/notifications — the caller's notifications, newest first, with
// filtering and pagination.
func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid filter: %s", err))
		return
	}
	limit, offset := parsePage(r, userLimitDefault, userLimitMax)

	notes, err := h.st.Notifications().FindByUser(r.Context(), userID(r), f, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notes == nil {
		notes = []notification.Notification{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// POST /v1/notifications/{id}/read — mark one notification read. 404 unless
// it belongs to the caller.
func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	err := h.st.Notifications().MarkRead(r.Context(), r.PathValue("id"), userID(r))
	if errors.Is(err, notification.ErrNotFound) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type bulkReadRequest struct {
	NotificationIDs []string `json:"notification_ids"`
}

// POST /v1/notifications/bulk-read — mark many notifications read at once.
// IDs not owned by the caller are skipped, not errors.
func (h *Handler) bulkMarkRead(w http.ResponseWriter, r *http.Request) {
	var req bulkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(req.NotificationIDs) == 0 {
		writeError(w, http.StatusBadRequest, "notification_ids must not be empty")
		return
	}

	updated, err := h.st.Notifications().BulkMarkRead(r.Context(), req.NotificationIDs, userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"updated_count": updated,
		"message":       fmt.Sprintf("marked %d notifications as read", updated),
	})
}

// GET /v1/system/notifications — every notification across all users, for
// monitoring and debugging.
func (h *Handler) systemNotifications(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid filter: %s", err))
		return
	}
	limit, offset := parsePage(r, systemLimitDefault, systemLimitMax)

	notes, err := h.st.Notifications().FindAll(r.Context(), f, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notes == nil {
		notes = []notification.Notification{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// GET /v1/objects/hierarchy — the path tree over every object the system has
// seen, for the object browser.
func (h *Handler) objectHierarchy(w http.ResponseWriter, r *http.Request) {
	paths, err := h.st.ObjectPaths(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tree := hierarchy.Tree(paths)
	if tree == nil {
		tree = []*hierarchy.Node{}
	}
	writeJSON(w, http.StatusOK, tree)
}

// GET /v1/config/severity-levels
func (h *Handler) severityLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.st.Config().ListSeverityLevels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"severity_levels": levels})
}

// GET /v1/config/event-types
func (h *Handler) eventTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.st.Config().ListEventTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_types": types})
}

// GET /v1/config/ui — opaque UI settings, served verbatim from config.
func (h *Handler) uiConfig(w http.ResponseWriter, r *http.Request) {
	ui := h.loader.Config().UI
	if ui == nil {
		ui = map[string]any{}
	}
	writeJSON(w, http.StatusOK, ui)
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the event queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ready",
		"queue_utilization": util,
	})
}

// loggingMiddleware logs one line per request with method, path, status, and
// latency.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("http request",
			"method", r.Method, "path", r.URL.Path,
			"status", sw.status, "duration", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade work through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}
