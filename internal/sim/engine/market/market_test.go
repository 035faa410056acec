package market

import (
	"errors"
	"testing"
)

const (
	creator = Address("CREATOR")
	alice   = Address("ALICE")
	bob     = Address("BOB")
)

func newInitialized(t *testing.T) *Market {
	t.Helper()
	m := New(500_000)
	if err := m.Init(creator, creator, 1_000_000, 3_000_000, 0); err != nil {
		t.Fatalf("init: %v", err)
	}
	return m
}

func TestInitOneShot(t *testing.T) {
	m := New(500_000)
	if err := m.Init(alice, creator, 100, 300, 0); !errors.Is(err, ErrRestricted) {
		t.Fatalf("non-creator init: got %v", err)
	}
	if err := m.Init(creator, creator, 100, 300, 0); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := m.Init(creator, creator, 100, 300, 0); !errors.Is(err, ErrAlreadyInit) {
		t.Fatalf("second init: got %v", err)
	}
	for r := Resource(0); r < NumResources; r++ {
		if m.Supply(r) != 100 {
			t.Fatalf("supply lock not minted for %s: %d", r, m.Supply(r))
		}
		if m.BalanceOf(SelfAddress, r) != 100 {
			t.Fatalf("lock not held by market for %s", r)
		}
		if m.PriceYesterday(r) == 0 {
			t.Fatalf("priceYesterday not snapshotted for %s", r)
		}
	}
	if m.Funds(0)+m.Funds(1)+m.Funds(2) != 300 {
		t.Fatalf("initial funds not fully distributed")
	}
}

func TestBuyRefundAndInsufficient(t *testing.T) {
	m := newInitialized(t)
	spends := Amounts{10_000, 0, 5_000}
	out, refund, err := m.Buy(alice, spends, 20_000, 10)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if refund != 5_000 {
		t.Fatalf("refund: got %d want 5000", refund)
	}
	if out[0] == 0 || out[2] == 0 || out[1] != 0 {
		t.Fatalf("unexpected returns: %v", out)
	}
	if m.BalanceOf(alice, Wood) != out[0] {
		t.Fatalf("tokens not credited")
	}
	if _, _, err := m.Buy(alice, Amounts{100, 100, 100}, 299, 10); !errors.Is(err, ErrInsufficient) {
		t.Fatalf("underfunded buy: got %v", err)
	}
}

func TestSellRoundTripNotProfitable(t *testing.T) {
	m := newInitialized(t)
	spend := uint64(50_000)
	out, _, err := m.Buy(alice, Amounts{spend, 0, 0}, spend, 10)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	payout, err := m.Sell(alice, Amounts{out[0], 0, 0}, 10)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if payout > spend {
		t.Fatalf("round trip profitable: %d > %d", payout, spend)
	}
	if m.BalanceOf(alice, Wood) != 0 {
		t.Fatalf("tokens not burned")
	}
	if _, err := m.Sell(alice, Amounts{1, 0, 0}, 10); !errors.Is(err, ErrInsufficient) {
		t.Fatalf("overselling: got %v", err)
	}
}

func TestStashBeforeMint(t *testing.T) {
	m := newInitialized(t)
	// Give alice tokens, then park them in the stash.
	out, _, err := m.Buy(alice, Amounts{100_000, 0, 0}, 100_000, 0)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	stashed := out[0]
	if err := m.Stash(creator, alice, Amounts{stashed, 0, 0}, 0); err != nil {
		t.Fatalf("stash: %v", err)
	}
	if m.StashOf(Wood) != stashed {
		t.Fatalf("stash not credited: %d", m.StashOf(Wood))
	}
	supplyBefore := m.Supply(Wood)

	// Mint within the stash: supply unchanged, stash reduced.
	part := stashed / 2
	if err := m.Mint(creator, bob, Amounts{part, 0, 0}, 0); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if m.Supply(Wood) != supplyBefore {
		t.Fatalf("supply inflated inside stash: %d != %d", m.Supply(Wood), supplyBefore)
	}
	if m.StashOf(Wood) != stashed-part {
		t.Fatalf("stash not drained: %d", m.StashOf(Wood))
	}

	// Mint beyond the stash: supply grows by exactly the shortfall.
	rest := m.StashOf(Wood)
	const k = 777
	if err := m.Mint(creator, bob, Amounts{rest + k, 0, 0}, 0); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if m.StashOf(Wood) != 0 {
		t.Fatalf("stash not zeroed")
	}
	if m.Supply(Wood) != supplyBefore+k {
		t.Fatalf("supply grew by %d, want %d", m.Supply(Wood)-supplyBefore, uint64(k))
	}
	if m.BalanceOf(bob, Wood) != stashed+k {
		t.Fatalf("recipient balance wrong: %d", m.BalanceOf(bob, Wood))
	}
}

func TestMintBurnAuthorityOnly(t *testing.T) {
	m := newInitialized(t)
	if err := m.Mint(alice, alice, Amounts{1, 0, 0}, 0); !errors.Is(err, ErrRestricted) {
		t.Fatalf("unauthorized mint: got %v", err)
	}
	if err := m.Burn(alice, alice, Amounts{1, 0, 0}, 0); !errors.Is(err, ErrRestricted) {
		t.Fatalf("unauthorized burn: got %v", err)
	}
	if err := m.AddAuthority(creator, alice); err != nil {
		t.Fatalf("add authority: %v", err)
	}
	if err := m.Mint(alice, bob, Amounts{5, 0, 0}, 0); err != nil {
		t.Fatalf("authorized mint: %v", err)
	}
	if err := m.Burn(alice, bob, Amounts{9, 0, 0}, 0); !errors.Is(err, ErrInsufficient) {
		t.Fatalf("overburn: got %v", err)
	}
	if err := m.Burn(alice, bob, Amounts{5, 0, 0}, 0); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if m.BalanceOf(bob, Wood) != 0 {
		t.Fatalf("balance after burn: %d", m.BalanceOf(bob, Wood))
	}
}

func TestTouchSnapshotsOncePerDay(t *testing.T) {
	m := newInitialized(t)
	before := m.PriceYesterday(Wood)
	// Same day: no snapshot even though the spot price moved.
	if _, _, err := m.Buy(alice, Amounts{200_000, 0, 0}, 200_000, 3_600); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if m.PriceYesterday(Wood) != before {
		t.Fatalf("snapshot taken within the same day")
	}
	// Next day: first mutating call snapshots.
	if _, _, err := m.Buy(alice, Amounts{1_000, 0, 0}, 1_000, 86_400+1); err != nil {
		t.Fatalf("buy: %v", err)
	}
	after := m.PriceYesterday(Wood)
	if after == before {
		t.Fatalf("snapshot not taken on day rollover")
	}
	if after != m.Price(Wood) && after == 0 {
		t.Fatalf("snapshot price bogus: %d", after)
	}
}

func TestAtomicBuyNoPartialMutation(t *testing.T) {
	m := newInitialized(t)
	supply0, funds0 := m.Supply(Wood), m.Funds(Wood)
	if _, _, err := m.Buy(alice, Amounts{10, 10, 10}, 5, 0); err == nil {
		t.Fatalf("expected failure")
	}
	if m.Supply(Wood) != supply0 || m.Funds(Wood) != funds0 || m.BalanceOf(alice, Wood) != 0 {
		t.Fatalf("failed buy left partial state")
	}
}
