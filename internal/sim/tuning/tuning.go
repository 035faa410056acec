package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the knob file for one engine instance. Everything here is read
// once at boot; the engine never re-reads it mid-run (determinism).
type Tuning struct {
	InstanceID string `yaml:"instance_id"`

	Market   Market   `yaml:"market"`
	Economy  Economy  `yaml:"economy"`
	Calendar Calendar `yaml:"calendar"`
	Server   Server   `yaml:"server"`
}

type Market struct {
	// Connector weight in PPM; controls curve convexity vs supply growth.
	ConnectorWeightPPM uint64 `yaml:"connector_weight_ppm"`
	// Permanent reserve minted to the market itself per resource at init.
	SupplyLock uint64 `yaml:"supply_lock"`
	// Native currency split evenly across resources at init.
	InitialFunds uint64 `yaml:"initial_funds"`
}

type Economy struct {
	BaseTilePrice     uint64 `yaml:"base_tile_price"`
	PurchaseMarkupPPM uint64 `yaml:"purchase_markup_ppm"`

	// Geometric curve bases, PPM. Expanded into fixed lookup tables over
	// [0, MaxHeight) at engine construction.
	HeightPremiumBasePPM uint64 `yaml:"height_premium_base_ppm"`
	HeightBonusBasePPM   uint64 `yaml:"height_bonus_base_ppm"`

	// Per-resource block cost parameters (PPM).
	ResourceAlphaPPM []uint64 `yaml:"resource_alpha_ppm"`
	RecipePPM        []uint64 `yaml:"recipe_ppm"`

	// Global production scale (PPM per block-sqrt unit).
	BaseProductionPPM uint64 `yaml:"base_production_ppm"`
	SecondsPerYear    int64  `yaml:"seconds_per_year"`
}

type Calendar struct {
	StartUnix           int64  `yaml:"start_unix"`
	WeekLengthS         int64  `yaml:"week_length_s"`
	TotalWeeks          int    `yaml:"total_weeks"`
	SeasonsPerYear      int    `yaml:"seasons_per_year"`
	SeasonYieldBonusPPM uint64 `yaml:"season_yield_bonus_ppm"`
	SeasonPriceBonusPPM uint64 `yaml:"season_price_bonus_ppm"`
}

type Server struct {
	SnapshotEveryS int `yaml:"snapshot_every_s"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		InstanceID: "hexopolis_1",
		Market: Market{
			ConnectorWeightPPM: 500_000,
			SupplyLock:         1_000_000,
			InitialFunds:       3_000_000,
		},
		Economy: Economy{
			BaseTilePrice:        100_000,
			PurchaseMarkupPPM:    1_250_000,
			HeightPremiumBasePPM: 1_200_000,
			HeightBonusBasePPM:   1_100_000,
			ResourceAlphaPPM:     []uint64{900, 700, 500},
			RecipePPM:            []uint64{2_000_000, 3_000_000, 5_000_000},
			BaseProductionPPM:    250_000,
			SecondsPerYear:       365 * 24 * 3600,
		},
		Calendar: Calendar{
			StartUnix:           1_704_067_200, // 2024-01-01T00:00:00Z
			WeekLengthS:         7 * 24 * 3600,
			TotalWeeks:          52,
			SeasonsPerYear:      4,
			SeasonYieldBonusPPM: 1_500_000,
			SeasonPriceBonusPPM: 1_250_000,
		},
		Server: Server{
			SnapshotEveryS: 300,
		},
	}
}

func (t Tuning) Validate() error {
	if t.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if t.Market.ConnectorWeightPPM == 0 || t.Market.ConnectorWeightPPM > 1_000_000 {
		return fmt.Errorf("connector_weight_ppm must be in (0, 1000000]")
	}
	if t.Market.SupplyLock == 0 {
		return fmt.Errorf("supply_lock must be positive")
	}
	if len(t.Economy.ResourceAlphaPPM) != 3 || len(t.Economy.RecipePPM) != 3 {
		return fmt.Errorf("resource_alpha_ppm and recipe_ppm need exactly 3 entries")
	}
	if t.Economy.PurchaseMarkupPPM <= 1_000_000 {
		return fmt.Errorf("purchase_markup_ppm must exceed 1000000 (prices are monotone)")
	}
	if t.Economy.HeightPremiumBasePPM < 1_000_000 || t.Economy.HeightBonusBasePPM < 1_000_000 {
		return fmt.Errorf("curve bases must be >= 1000000")
	}
	if t.Economy.SecondsPerYear <= 0 {
		return fmt.Errorf("seconds_per_year must be positive")
	}
	if t.Calendar.WeekLengthS <= 0 || t.Calendar.TotalWeeks <= 0 {
		return fmt.Errorf("calendar needs positive week_length_s and total_weeks")
	}
	if t.Calendar.SeasonsPerYear <= 0 || t.Calendar.SeasonsPerYear > t.Calendar.TotalWeeks {
		return fmt.Errorf("seasons_per_year must be in [1, total_weeks]")
	}
	return nil
}

// Digest is a stable fingerprint of the effective tuning, advertised in the
// WELCOME message and stamped into snapshots.
func (t Tuning) Digest() string {
	b, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
