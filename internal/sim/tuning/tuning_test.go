package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	body := `
instance_id: test_1
market:
  connector_weight_ppm: 500000
  supply_lock: 500
  initial_funds: 3000
economy:
  base_tile_price: 1000
  purchase_markup_ppm: 1100000
  height_premium_base_ppm: 1200000
  height_bonus_base_ppm: 1100000
  resource_alpha_ppm: [900, 700, 500]
  recipe_ppm: [2000000, 3000000, 5000000]
  base_production_ppm: 250000
  seconds_per_year: 31536000
calendar:
  start_unix: 1704067200
  week_length_s: 604800
  total_weeks: 52
  seasons_per_year: 4
  season_yield_bonus_ppm: 1500000
  season_price_bonus_ppm: 1250000
server:
  snapshot_every_s: 60
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.InstanceID != "test_1" || got.Market.SupplyLock != 500 {
		t.Fatalf("unexpected tuning: %+v", got)
	}
	if got.Digest() == "" || got.Digest() != got.Digest() {
		t.Fatalf("digest must be stable and non-empty")
	}
}

func TestValidateRejectsBadCurves(t *testing.T) {
	bad := Defaults()
	bad.Economy.PurchaseMarkupPPM = 1_000_000
	if err := bad.Validate(); err == nil {
		t.Fatalf("markup of exactly 1.0 must be rejected")
	}
	bad = Defaults()
	bad.Market.ConnectorWeightPPM = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("zero connector weight must be rejected")
	}
}
