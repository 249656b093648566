package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"trader-agent/session"
	"trader-agent/store"
	"trader-agent/types"
)

// credentialStore is the persistence surface the handlers need.
type credentialStore interface {
	SaveCredentials(ctx context.Context, userID, apiKey, apiSecret string) error
	Get(ctx context.Context, userID string) (*store.Record, error)
}

// tickerValidator answers whether a symbol is tradable.
type tickerValidator interface {
	Exists(symbol string) (bool, error)
}

// sessionController is the lifecycle surface the handlers need.
type sessionController interface {
	Start(ctx context.Context, userID, symbol string, endTime time.Time, spendCap float64) error
	Stop(ctx context.Context, userID string) (*types.SessionReport, error)
}

// server exposes the chat front-end's control plane. Every endpoint answers
// HTTP 200 with a JSON body carrying an embedded status code, which is the
// convention the front-end expects.
type server struct {
	store     credentialStore
	validator tickerValidator
	sessions  sessionController
	newBroker session.BrokerFactory
}

// RegisterRoutes attaches all control-plane endpoints to the mux.
func (s *server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /checkcredentials/{chat_id}", s.handleCheckCredentials)
	mux.HandleFunc("POST /verifyandstorecredentials/", s.handleVerifyCredentials)
	mux.HandleFunc("POST /check_ticker/", s.handleCheckTicker)
	mux.HandleFunc("POST /store_and_start_new_session/", s.handleStartSession)
	mux.HandleFunc("POST /stop_session/", s.handleStopSession)
}

// statusResponse is the envelope every endpoint answers with.
type statusResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Warning: failed to write response: %v", err)
	}
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, statusResponse{Status: status, Message: message})
}

func (s *server) handleCheckCredentials(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chat_id")

	rec, err := s.store.Get(r.Context(), chatID)
	if err != nil {
		log.Printf("Credential lookup for %s failed: %v", chatID, err)
		writeStatus(w, http.StatusInternalServerError, "Failed to read credentials.")
		return
	}
	if rec == nil {
		writeStatus(w, http.StatusNotFound, "No credentials stored.")
		return
	}

	writeJSON(w, struct {
		Status int `json:"status"`
		*store.Record
	}{Status: http.StatusOK, Record: rec})
}

type verifyCredentialsRequest struct {
	ChatID    string `json:"chat_id"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

func (s *server) handleVerifyCredentials(w http.ResponseWriter, r *http.Request) {
	var req verifyCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if req.ChatID == "" || req.APIKey == "" || req.APISecret == "" {
		writeStatus(w, http.StatusBadRequest, "chat_id, api_key and api_secret are required.")
		return
	}

	if err := s.newBroker(req.APIKey, req.APISecret).VerifyCredentials(); err != nil {
		log.Printf("Credential verification for %s failed: %v", req.ChatID, err)
		writeStatus(w, http.StatusNotFound, "Invalid credentials or access forbidden.")
		return
	}

	if err := s.store.SaveCredentials(r.Context(), req.ChatID, req.APIKey, req.APISecret); err != nil {
		log.Printf("Failed to store credentials for %s: %v", req.ChatID, err)
		writeStatus(w, http.StatusInternalServerError, "Failed to store credentials.")
		return
	}
	writeStatus(w, http.StatusOK, "Credentials verified and stored successfully.")
}

type checkTickerRequest struct {
	Ticker string `json:"ticker"`
}

func (s *server) handleCheckTicker(w http.ResponseWriter, r *http.Request) {
	var req checkTickerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ticker == "" {
		writeStatus(w, http.StatusBadRequest, "ticker is required.")
		return
	}

	exists, err := s.validator.Exists(req.Ticker)
	if err != nil {
		log.Printf("Ticker check for %s failed: %v", req.Ticker, err)
		writeStatus(w, http.StatusInternalServerError, "Failed to check ticker.")
		return
	}
	if !exists {
		writeStatus(w, http.StatusNotFound, "Ticker not found.")
		return
	}
	writeStatus(w, http.StatusOK, "Ticker exists.")
}

type startSessionRequest struct {
	ChatID        string `json:"chat_id"`
	Ticker        string `json:"ticker"`
	EndTime       string `json:"end_time"`
	AmountToSpend string `json:"amount_to_spend"`
}

func (s *server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if req.ChatID == "" || req.Ticker == "" {
		writeStatus(w, http.StatusBadRequest, "chat_id and ticker are required.")
		return
	}

	endTime, err := time.ParseInLocation(types.EndTimeLayout, req.EndTime, time.Local)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "end_time must use the format YYYY-MM-DD HH:MM:SS.")
		return
	}

	spendCap, err := strconv.ParseFloat(req.AmountToSpend, 64)
	if err != nil || spendCap <= 0 {
		writeStatus(w, http.StatusBadRequest, "amount_to_spend must be a positive number.")
		return
	}

	switch err := s.sessions.Start(r.Context(), req.ChatID, req.Ticker, endTime, spendCap); {
	case err == nil:
		writeStatus(w, http.StatusOK, "Trading session started.")
	case errors.Is(err, session.ErrNoCredentials):
		writeStatus(w, http.StatusNotFound, "No credentials stored. Verify credentials first.")
	case errors.Is(err, session.ErrInsufficientFunds):
		writeStatus(w, http.StatusForbidden, "Insufficient funds for the requested spending cap.")
	case errors.Is(err, session.ErrAlreadyActive):
		writeStatus(w, http.StatusConflict, "A session is already active. Stop it first.")
	case errors.Is(err, session.ErrEndTimeNotFuture):
		writeStatus(w, http.StatusBadRequest, "end_time must be in the future.")
	default:
		log.Printf("Failed to start session for %s: %v", req.ChatID, err)
		writeStatus(w, http.StatusInternalServerError, "Failed to start session.")
	}
}

type stopSessionRequest struct {
	ChatID string `json:"chat_id"`
}

type stopSessionResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	types.SessionReport
}

func (s *server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	var req stopSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == "" {
		writeStatus(w, http.StatusBadRequest, "chat_id is required.")
		return
	}

	report, err := s.sessions.Stop(r.Context(), req.ChatID)
	switch {
	case err == nil:
		writeJSON(w, stopSessionResponse{
			Status:        http.StatusOK,
			Message:       "Trading session stopped.",
			SessionReport: *report,
		})
	case errors.Is(err, session.ErrNoActiveSession):
		writeStatus(w, http.StatusNotFound, "No active session.")
	default:
		log.Printf("Failed to stop session for %s: %v", req.ChatID, err)
		writeStatus(w, http.StatusInternalServerError, "Failed to stop session.")
	}
}
