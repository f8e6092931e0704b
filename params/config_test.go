package params

import (
	"testing"
	"time"
)

func TestParseValidators(t *testing.T) {
	got := parseValidators("aabb:3, ccdd:7,eeff")
	want := []Validator{
		{AccountKeyHex: "aabb", Stake: 3},
		{AccountKeyHex: "ccdd", Stake: 7},
		{AccountKeyHex: "eeff", Stake: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("parseValidators len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestParseValidatorsSkipsBlankEntries(t *testing.T) {
	got := parseValidators("aabb:1,,  ,ccdd:2")
	if len(got) != 2 {
		t.Fatalf("parseValidators len = %d, want 2, got %#v", len(got), got)
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("PEER_SELF_KEY", "deadbeef")
	t.Setenv("PEER_VALIDATORS", "aabb:5")
	t.Setenv("PEER_STORE_PATH", "/tmp/cells")
	t.Setenv("PEER_LISTEN_ADDR", "/ip4/127.0.0.1/tcp/4001")
	t.Setenv("PEER_BOOTSTRAP", "/ip4/1.2.3.4/tcp/4001,/ip4/5.6.7.8/tcp/4001")
	t.Setenv("PEER_GOSSIP_FANOUT", "6")
	t.Setenv("PEER_API_ADDR", "127.0.0.1:9090")
	t.Setenv("PEER_MERGE_INTERVAL_MS", "500")

	cfg := LoadFromEnv("/nonexistent/path/to/.env")

	if cfg.SelfKeyHex != "deadbeef" {
		t.Errorf("SelfKeyHex = %q, want deadbeef", cfg.SelfKeyHex)
	}
	if len(cfg.Validators) != 1 || cfg.Validators[0].Stake != 5 {
		t.Errorf("Validators = %#v, want one entry with Stake 5", cfg.Validators)
	}
	if cfg.Store.CellStorePath != "/tmp/cells" {
		t.Errorf("Store.CellStorePath = %q, want /tmp/cells", cfg.Store.CellStorePath)
	}
	if cfg.Network.ListenAddr != "/ip4/127.0.0.1/tcp/4001" {
		t.Errorf("Network.ListenAddr = %q", cfg.Network.ListenAddr)
	}
	if len(cfg.Network.Bootstrap) != 2 {
		t.Errorf("Network.Bootstrap = %#v, want 2 entries", cfg.Network.Bootstrap)
	}
	if cfg.Network.GossipFanout != 6 {
		t.Errorf("Network.GossipFanout = %d, want 6", cfg.Network.GossipFanout)
	}
	if cfg.API.ListenAddr != "127.0.0.1:9090" {
		t.Errorf("API.ListenAddr = %q, want 127.0.0.1:9090", cfg.API.ListenAddr)
	}
	if cfg.MergeInterval != 500*time.Millisecond {
		t.Errorf("MergeInterval = %v, want 500ms", cfg.MergeInterval)
	}
}

func TestLoadFromEnvFallsBackToDefaults(t *testing.T) {
	cfg := LoadFromEnv("/nonexistent/path/to/.env")
	def := Default()
	if cfg.Store.CellStorePath != def.Store.CellStorePath {
		t.Errorf("CellStorePath = %q, want default %q", cfg.Store.CellStorePath, def.Store.CellStorePath)
	}
	if cfg.MergeInterval != def.MergeInterval {
		t.Errorf("MergeInterval = %v, want default %v", cfg.MergeInterval, def.MergeInterval)
	}
}
