// Package bridgetest runs an in-process wallet bridge for tests.
package bridgetest

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// Server answers the bridge and relay endpoints with a real secp256k1 key.
type Server struct {
	*httptest.Server

	Key       *ecdsa.PrivateKey
	GenesisID string

	mu sync.Mutex
	// RejectSigners answers every approval request with 403.
	RejectSigners bool
	// RequireGenesis answers 422 to signer requests that only name the network.
	RequireGenesis bool
	// PendingPolls is how many pairing polls stay pending before approval.
	PendingPolls int
	// RejectPairing makes pairings end rejected instead of approved.
	RejectPairing bool

	signerRequests []map[string]string
	transactions   []json.RawMessage
	pairingPolls   map[string]int
	sessions       int
}

func NewServer(t *testing.T, genesisID string) *Server {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	s := &Server{Key: key, GenesisID: genesisID, pairingPolls: map[string]int{}}

	mux := http.NewServeMux()
	for _, prefix := range []string{"", "/v1"} {
		mux.HandleFunc("POST "+prefix+"/signers", s.handleSigner)
		mux.HandleFunc("POST "+prefix+"/enable", s.handleSigner)
		mux.HandleFunc("GET "+prefix+"/sessions/{id}/genesis", s.handleGenesis)
		mux.HandleFunc("POST "+prefix+"/sessions/{id}/certificate", s.handleCertificate)
		mux.HandleFunc("POST "+prefix+"/sessions/{id}/transaction", s.handleTransaction)
		mux.HandleFunc("GET "+prefix+"/sessions/{id}/account", s.handleAccount)
	}
	mux.HandleFunc("POST /v1/pairings", s.handleCreatePairing)
	mux.HandleFunc("GET /v1/pairings/{topic}", s.handlePollPairing)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

func (s *Server) Address() string {
	return crypto.PubkeyToAddress(s.Key.PublicKey).Hex()
}

func (s *Server) SignerRequests() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.signerRequests...)
}

func (s *Server) Transactions() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.transactions...)
}

func (s *Server) Configure(fn func(s *Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *Server) newSession() string {
	s.sessions++
	return fmt.Sprintf("session-%d", s.sessions)
}

func (s *Server) handleSigner(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.signerRequests = append(s.signerRequests, body)

	if s.RequireGenesis && body["genesisId"] == "" && body["chainId"] == "" {
		writeError(w, http.StatusUnprocessableEntity, "genesis id required")
		return
	}
	if s.RejectSigners {
		writeError(w, http.StatusForbidden, "user rejected the request")
		return
	}
	writeJSON(w, map[string]string{"session": s.newSession()})
}

func (s *Server) handleGenesis(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, map[string]string{"genesisId": s.GenesisID})
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Certificate domain.Certificate `json:"certificate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cert := body.Certificate
	cert.Signer = s.Address()
	hash, err := cert.SigningHash()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	signature, err := crypto.Sign(hash[:], s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]any{"certificate": cert, "signature": hexutil.Encode(signature)})
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.transactions = append(s.transactions, body)
	count := len(s.transactions)
	s.mu.Unlock()

	txID := crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d", count))).Hex()
	writeJSON(w, map[string]string{"txid": txID, "signer": s.Address()})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"account": s.Address()})
}

func (s *Server) handleCreatePairing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Topic string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic required")
		return
	}

	s.mu.Lock()
	s.pairingPolls[body.Topic] = 0
	s.mu.Unlock()

	writeJSON(w, map[string]string{"topic": body.Topic, "uri": "wc:" + body.Topic + "@2?relay-protocol=irn"})
}

func (s *Server) handlePollPairing(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("topic")

	s.mu.Lock()
	defer s.mu.Unlock()

	polls, ok := s.pairingPolls[topic]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown topic")
		return
	}
	s.pairingPolls[topic] = polls + 1

	switch {
	case polls < s.PendingPolls:
		writeJSON(w, map[string]string{"status": "pending"})
	case s.RejectPairing:
		writeJSON(w, map[string]string{"status": "rejected"})
	default:
		writeJSON(w, map[string]string{"status": "approved", "account": s.Address(), "session": s.newSession()})
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status), "message": message})
}
