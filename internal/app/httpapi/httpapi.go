// Package httpapi exposes the wallet core over REST for the screen and
// camera collaborators.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/solsnap/walletcore/internal/app"
	"github.com/solsnap/walletcore/internal/app/domain/challenge"
	"github.com/solsnap/walletcore/internal/app/metrics"
	"github.com/solsnap/walletcore/internal/app/services/ledger"
	sessionsvc "github.com/solsnap/walletcore/internal/app/services/session"
	"github.com/solsnap/walletcore/internal/app/services/stake"
	"github.com/solsnap/walletcore/internal/chain"
	"github.com/solsnap/walletcore/internal/solana"
	"github.com/solsnap/walletcore/internal/wallet"
	"github.com/solsnap/walletcore/pkg/logger"
)

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server serves the REST API over an Application.
type Server struct {
	app *app.Application
	log *logger.Logger
}

// NewServer creates the API server.
func NewServer(a *app.Application, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Server{app: a, log: log}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/session", s.handleGetSession).Methods("GET")
	r.HandleFunc("/session/connect", s.handleConnect).Methods("POST")
	r.HandleFunc("/session", s.handleDisconnect).Methods("DELETE")
	r.HandleFunc("/challenges", s.handleListChallenges).Methods("GET")
	r.HandleFunc("/challenges", s.handleCreateChallenge).Methods("POST")
	r.HandleFunc("/challenges/{id}/join", s.handleJoin).Methods("POST")
	r.HandleFunc("/challenges/{id}/join", s.handleLeave).Methods("DELETE")
	r.HandleFunc("/challenges/{id}/proof", s.handleProof).Methods("POST")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	return r
}

// SessionView is the wire shape of the current session. The balance is
// reported both in lamports and as the decimal SOL string the screen shows.
type SessionView struct {
	Connected       bool    `json:"connected"`
	Address         string  `json:"address,omitempty"`
	BalanceLamports *uint64 `json:"balanceLamports,omitempty"`
	BalanceSol      string  `json:"balanceSol,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.app.Sessions.Current()
	view := SessionView{Connected: sess.Connected()}
	if sess.Connected() {
		view.Address = sess.Address.String()
		if lamports, ok := sess.Balance(); ok {
			view.BalanceLamports = &lamports
			view.BalanceSol = solana.FromLamports(lamports).String()
		}
	}
	WriteSuccess(w, view)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	addr, err := s.app.Connect(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]string{"address": addr.String()})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.app.Disconnect(r.Context())
	WriteSuccess(w, nil)
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, s.app.Challenges(time.Now()))
}

// CreateChallengeInput is the create request body. Amounts are user-facing
// decimal SOL, either JSON numbers or strings, and are floored to lamports
// before they reach the pipeline.
type CreateChallengeInput struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	StakeSol        decimal.Decimal `json:"stakeSol"`
	PrizeSol        decimal.Decimal `json:"prizeSol"`
	MaxParticipants int             `json:"maxParticipants"`
	Duration        string          `json:"duration"`
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var input CreateChallengeInput
	if err := ReadJSON(r, &input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	stakeLamports, err := solana.ToLamports(input.StakeSol)
	if err != nil {
		s.writeDomainError(w, fmt.Errorf("stake amount: %w", err))
		return
	}
	prizeLamports, err := solana.ToLamports(input.PrizeSol)
	if err != nil {
		s.writeDomainError(w, fmt.Errorf("prize amount: %w", err))
		return
	}
	rec, sig, err := s.app.CreateChallenge(r.Context(), challenge.Draft{
		Title:           input.Title,
		Description:     input.Description,
		StakeLamports:   stakeLamports,
		PrizeLamports:   prizeLamports,
		MaxParticipants: input.MaxParticipants,
		Duration:        input.Duration,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, APIResponse{Success: true, Data: map[string]any{
		"challenge": rec,
		"signature": sig,
	}})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sig, err := s.app.JoinChallenge(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]string{"signature": sig})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if err := s.app.LeaveChallenge(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeDomainError(w, err)
		return
	}
	WriteSuccess(w, nil)
}

// ProofInput carries the artifact reference produced by the camera
// collaborator.
type ProofInput struct {
	Ref string `json:"ref"`
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	var input ProofInput
	if err := ReadJSON(r, &input); err != nil || input.Ref == "" {
		WriteError(w, http.StatusBadRequest, "proof ref required")
		return
	}
	if err := s.app.Ledger.RecordProof(r.Context(), mux.Vars(r)["id"], input.Ref); err != nil {
		s.writeDomainError(w, err)
		return
	}
	WriteSuccess(w, nil)
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, stake.ErrInvalidDraft),
		errors.Is(err, solana.ErrInvalidAmount),
		errors.Is(err, solana.ErrDecodeAddress):
		status = http.StatusBadRequest
	case errors.Is(err, stake.ErrNotConnected),
		errors.Is(err, wallet.ErrAuthorizationDenied):
		status = http.StatusUnauthorized
	case errors.Is(err, stake.ErrUnknownChallenge),
		errors.Is(err, ledger.ErrNotJoined):
		status = http.StatusNotFound
	case errors.Is(err, sessionsvc.ErrConnectInFlight),
		errors.Is(err, stake.ErrInsufficientBalance):
		status = http.StatusConflict
	case errors.Is(err, stake.ErrBlockhashExpired),
		errors.Is(err, stake.ErrConfirmationTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, stake.ErrTransactionFailed),
		errors.Is(err, chain.ErrNetwork),
		errors.Is(err, wallet.ErrNoAccounts):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("unhandled API error")
	}
	WriteError(w, status, err.Error())
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a success response.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, APIResponse{Success: false, Error: message})
}

// ReadJSON reads JSON from the request body.
func ReadJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}
