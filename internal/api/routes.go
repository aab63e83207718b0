package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Alert routes
	api.HandleFunc("/alerts", handler.CreateAlert).Methods("POST")
	api.HandleFunc("/alerts", handler.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id:[0-9]+}", handler.GetAlert).Methods("GET")
	api.HandleFunc("/alerts/{id:[0-9]+}", handler.UpdateAlert).Methods("PUT")
	api.HandleFunc("/alerts/{id:[0-9]+}", handler.DeleteAlert).Methods("DELETE")
	api.HandleFunc("/alerts/{id:[0-9]+}/mute", handler.MuteAlert).Methods("POST")
	api.HandleFunc("/alerts/{id:[0-9]+}/unmute", handler.UnmuteAlert).Methods("POST")

	// Trigger log routes
	api.HandleFunc("/triggers", handler.GetRecentTriggers).Methods("GET")
	api.HandleFunc("/alerts/{id:[0-9]+}/triggers", handler.GetAlertTriggers).Methods("GET")

	// Notification channel routes
	api.HandleFunc("/users/{id}/channels", handler.GetChannelSettings).Methods("GET")
	api.HandleFunc("/users/{id}/channels", handler.PutChannelSettings).Methods("PUT")
	api.HandleFunc("/alerts/{id:[0-9]+}/channels", handler.GetChannelOverride).Methods("GET")
	api.HandleFunc("/alerts/{id:[0-9]+}/channels", handler.PatchChannelOverride).Methods("PATCH")

	// Delivery history routes
	api.HandleFunc("/triggers/{id:[0-9]+}/deliveries", handler.GetTriggerDeliveries).Methods("GET")
	api.HandleFunc("/deliveries", handler.GetDeliveriesByStatus).Methods("GET")

	return r
}
