package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/chartwatch/alert-engine/internal/database"
	"github.com/chartwatch/alert-engine/internal/models"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db *database.DB
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB) *Handler {
	return &Handler{db: db}
}

// CreateAlert handles POST /alerts
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var alert models.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if alert.CooldownSeconds == 0 {
		alert.CooldownSeconds = models.DefaultCooldownSeconds
	}
	if alert.TriggerMode == "" {
		alert.TriggerMode = models.TriggerModeOncePerBarClose
	}
	alert.IsActive = true

	if err := alert.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.db.CreateAlert(r.Context(), &alert); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, alert)
}

// GetAlerts handles GET /alerts?user_id=
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	alerts, err := h.db.GetAlertsByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, alerts)
}

// GetAlert handles GET /alerts/{id}
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	alert, err := h.db.GetAlertByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

// UpdateAlert handles PUT /alerts/{id}
func (h *Handler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	existing, err := h.db.GetAlertByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var alert models.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	alert.ID = existing.ID
	alert.UserID = existing.UserID
	alert.Symbol = existing.Symbol
	if alert.CooldownSeconds == 0 {
		alert.CooldownSeconds = existing.CooldownSeconds
	}
	if alert.TriggerMode == "" {
		alert.TriggerMode = existing.TriggerMode
	}

	if err := alert.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateAlert(r.Context(), &alert); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

// DeleteAlert handles DELETE /alerts/{id}. In-flight deliveries for
// already-recorded triggers run to terminal status regardless.
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.db.DeleteAlert(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MuteAlert handles POST /alerts/{id}/mute
func (h *Handler) MuteAlert(w http.ResponseWriter, r *http.Request) {
	h.setMuted(w, r, true)
}

// UnmuteAlert handles POST /alerts/{id}/unmute
func (h *Handler) UnmuteAlert(w http.ResponseWriter, r *http.Request) {
	h.setMuted(w, r, false)
}

func (h *Handler) setMuted(w http.ResponseWriter, r *http.Request, muted bool) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.db.SetAlertMuted(r.Context(), id, muted); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"is_muted": muted})
}

// GetRecentTriggers handles GET /triggers?symbol=&limit=&offset=
func (h *Handler) GetRecentTriggers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)
	symbol := r.URL.Query().Get("symbol")

	var triggers []*models.AlertTrigger
	var err error
	if symbol != "" {
		triggers, err = h.db.GetRecentTriggersBySymbol(r.Context(), symbol, limit, offset)
	} else {
		triggers, err = h.db.GetRecentTriggers(r.Context(), limit, offset)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, triggers)
}

// GetAlertTriggers handles GET /alerts/{id}/triggers
func (h *Handler) GetAlertTriggers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	triggers, err := h.db.GetTriggersByAlertID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, triggers)
}

// GetChannelSettings handles GET /users/{id}/channels
func (h *Handler) GetChannelSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	settings, err := h.db.GetChannelSettings(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// PutChannelSettings handles PUT /users/{id}/channels
func (h *Handler) PutChannelSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var settings models.ChannelSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	settings.UserID = userID

	if err := h.db.UpsertChannelSettings(r.Context(), &settings); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// GetChannelOverride handles GET /alerts/{id}/channels
func (h *Handler) GetChannelOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	override, err := h.db.GetChannelOverride(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if override == nil {
		// No override stored: the alert inherits the user's globals.
		respondJSON(w, http.StatusOK, models.ChannelOverride{AlertID: id})
		return
	}

	respondJSON(w, http.StatusOK, override)
}

// PatchChannelOverride handles PATCH /alerts/{id}/channels. A null
// field in the body means "inherit global" for that channel.
func (h *Handler) PatchChannelOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.db.GetAlertByID(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var override models.ChannelOverride
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	override.AlertID = id

	if err := h.db.UpsertChannelOverride(r.Context(), &override); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, override)
}

// GetTriggerDeliveries handles GET /triggers/{id}/deliveries
func (h *Handler) GetTriggerDeliveries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	deliveries, err := h.db.GetDeliveriesByTriggerID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, deliveries)
}

// GetDeliveriesByStatus handles GET /deliveries?status=&limit=
func (h *Handler) GetDeliveriesByStatus(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case models.DeliveryStatusPending, models.DeliveryStatusRetrying,
		models.DeliveryStatusDelivered, models.DeliveryStatusFailed:
	default:
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	limit := queryInt(r, "limit", 100)
	deliveries, err := h.db.GetDeliveriesByStatus(r.Context(), status, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, deliveries)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
