// Package api exposes a peer's status, beliefs, and orders over HTTP, plus
// a websocket feed of consensus advancement — an operational surface over
// the belief-merge core, not part of its correctness.
package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/latticebft/core/pkg/belief"
	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/state"
	"github.com/latticebft/core/pkg/txn"
	"github.com/latticebft/core/pkg/wire"
)

// Server handles the REST and websocket inspection surface for one Peer.
type Server struct {
	peer   *belief.Peer
	pool   *txn.Pool
	router *mux.Router
	hub    *Hub
}

// NewServer builds a Server over peer, accepting locally-submitted
// transactions into pool.
func NewServer(peer *belief.Peer, pool *txn.Pool) *Server {
	s := &Server{
		peer:   peer,
		pool:   pool,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/status", s.handleStatus).Methods("GET")
	v1.HandleFunc("/orders/{peerKey}", s.handleGetOrder).Methods("GET")
	v1.HandleFunc("/accounts/{key}", s.handleGetAccount).Methods("GET")
	v1.HandleFunc("/transact", s.handleSubmitTx).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the HTTP server, blocking until it errors.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})
	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// BroadcastConsensusAdvanced notifies websocket subscribers that a peer's
// consensusPoint moved. Called by the peer's merge loop after every round
// where NewConsensusPoint > PrevConsensusPoint.
func (s *Server) BroadcastConsensusAdvanced(peerKey cell.AccountKey, prev, next, timestamp int64) {
	s.hub.BroadcastToChannel("consensus", ConsensusAdvancedEvent{
		Type:               "consensusAdvanced",
		PeerKey:            peerKey.String(),
		PrevConsensusPoint: prev,
		NewConsensusPoint:  next,
		Timestamp:          timestamp,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	order, _ := s.peer.GetOrder(s.peer.Key)
	st := s.peer.GetConsensusState()

	response := PeerStatusInfo{
		PeerKey:        s.peer.Key.String(),
		BeliefHash:     cell.HashOf(s.peer.Belief()).String(),
		ConsensusPoint: order.ConsensusPoint,
		ProposalPoint:  order.ProposalPoint,
		TotalFunds:     state.ComputeTotalFunds(st),
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	keyHex := mux.Vars(r)["peerKey"]
	key, err := parseAccountKey(keyHex)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid peer key", err.Error())
		return
	}
	order, ok := s.peer.GetOrder(key)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	blocks, _ := order.BlocksVector()
	respondJSON(w, OrderInfo{
		PeerKey:        keyHex,
		BlockCount:     blocks.Count(),
		ProposalPoint:  order.ProposalPoint,
		ConsensusPoint: order.ConsensusPoint,
		Timestamp:      order.Timestamp,
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	keyHex := mux.Vars(r)["key"]
	key, err := parseAccountKey(keyHex)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account key", err.Error())
		return
	}
	acc, ok := s.peer.GetConsensusState().Account(key)
	if !ok {
		respondError(w, http.StatusNotFound, "account not found", "")
		return
	}
	respondJSON(w, AccountInfo{Key: keyHex, Balance: acc.Balance, Sequence: acc.Sequence})
}

func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}
	var req SubmitTxRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	raw, err := hex.DecodeString(req.SignedTxHex)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid hex", err.Error())
		return
	}
	f, err := wire.DecodeCellFrame(wire.Frame{Tag: wire.TagTransact, Body: raw})
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction encoding", err.Error())
		return
	}
	signed, ok := f.(cell.SignedData)
	if !ok {
		respondError(w, http.StatusBadRequest, "expected a SignedData envelope", "")
		return
	}
	if !s.pool.Push(signed) {
		respondError(w, http.StatusBadRequest, "signature verification failed", "")
		return
	}
	respondJSON(w, SubmitTxResponse{Status: "submitted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func parseAccountKey(s string) (cell.AccountKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return cell.AccountKey{}, err
	}
	if len(b) != 32 {
		return cell.AccountKey{}, fmt.Errorf("api: account key must be 32 bytes, got %d", len(b))
	}
	var k cell.AccountKey
	copy(k[:], b)
	return k, nil
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
