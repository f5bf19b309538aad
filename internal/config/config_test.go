package config

import "testing"

func validConfig() Config {
	cfg := Default()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.Wallet.ChainID = 137
	cfg.API.CLOBBaseURL = "https://clob.polymarket.com"
	cfg.Risk.MaxPositionPerMarket = 100
	cfg.Risk.MaxTotalExposure = 500
	return cfg
}

func TestValidate_AcceptsDefaultsPlusRequiredFields(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_RequiresPrivateKey(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Wallet.PrivateKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing private key")
	}
}

func TestValidate_RequiresFunderAddressForProxySignatures(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Wallet.SignatureType = 1
	cfg.Wallet.FunderAddress = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing funder address with signature_type=1")
	}
}

func TestValidate_RejectsTotalExposureBelowPerMarket(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Risk.MaxPositionPerMarket = 500
	cfg.Risk.MaxTotalExposure = 100
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max_total_exposure < max_position_per_market")
	}
}

func TestValidate_RequiresMaxClustersWhenCombinatorialEnabled(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Strategy.Combinatorial.Enabled = true
	cfg.Strategy.Combinatorial.MaxClustersPerCycle = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for combinatorial enabled without max_clusters_per_cycle")
	}
}

func TestPoolConfig_ToPoolConfig(t *testing.T) {
	t.Parallel()
	cfg := Default()
	pc := cfg.Pool.ToPoolConfig(cfg.Reconnect)
	if pc.MaxConnections != 10 || pc.SubscriptionsPerConnection != 500 {
		t.Fatalf("unexpected pool config: %+v", pc)
	}
	if pc.Reconnect.MaxDelayMs != 60000 {
		t.Fatalf("unexpected nested reconnect config: %+v", pc.Reconnect)
	}
}
