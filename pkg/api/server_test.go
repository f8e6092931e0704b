package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/latticebft/core/pkg/belief"
	"github.com/latticebft/core/pkg/cell"
	"github.com/latticebft/core/pkg/crypto"
	"github.com/latticebft/core/pkg/state"
	"github.com/latticebft/core/pkg/txn"
)

func newTestServer(t *testing.T) (*Server, *crypto.KeyPair) {
	t.Helper()
	kp, err := crypto.Generate()
	if err != nil {
		t.Fatalf("crypto.Generate: %v", err)
	}
	key := cell.AccountKey(kp.PublicKey())
	accounts := map[cell.AccountKey]int64{key: 1_000_000}
	peers := map[cell.AccountKey]int64{key: 1}
	genesis := state.Genesis(accounts, peers)

	p := belief.NewPeer(kp, genesis, txn.DefaultApplier{})
	pool := txn.NewPool()
	return NewServer(p, pool), kp
}

func TestHandleStatus(t *testing.T) {
	s, kp := newTestServer(t)
	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got PeerStatusInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.PeerKey != cell.AccountKey(kp.PublicKey()).String() {
		t.Fatalf("peerKey = %s, want %s", got.PeerKey, kp.PublicKey().String())
	}
	if got.TotalFunds != 1_000_001 {
		t.Fatalf("totalFunds = %d, want 1000001 (1000000 balance + 1 stake)", got.TotalFunds)
	}
}

func TestHandleGetAccount(t *testing.T) {
	s, kp := newTestServer(t)
	key := cell.AccountKey(kp.PublicKey())
	req := httptest.NewRequest("GET", "/api/v1/accounts/"+hex.EncodeToString(key[:]), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var got AccountInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Balance != 1_000_000 {
		t.Fatalf("balance = %d, want 1000000", got.Balance)
	}
}

func TestHandleGetAccountNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	var zero cell.AccountKey
	req := httptest.NewRequest("GET", "/api/v1/accounts/"+hex.EncodeToString(zero[:]), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGetAccountBadHex(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/api/v1/accounts/not-hex", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
