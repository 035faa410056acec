package tokenproxy

import (
	"errors"
	"testing"

	"hexopolis.gg/internal/sim/engine/market"
)

func TestProxyTransferOnlyThroughBoundProxy(t *testing.T) {
	creator := market.Address("CREATOR")
	m := market.New(500_000)
	if err := m.Init(creator, creator, 1_000, 3_000, 0); err != nil {
		t.Fatalf("init: %v", err)
	}
	tok, err := Bind(creator, m, market.Wood)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := Bind(creator, m, market.Wood); err == nil {
		t.Fatalf("double bind must fail")
	}

	alice := market.Address("ALICE")
	bob := market.Address("BOB")
	if err := m.Mint(creator, alice, market.Amounts{40, 0, 0}, 0); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tok.Transfer(alice, bob, 15); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if tok.BalanceOf(bob) != 15 || tok.BalanceOf(alice) != 25 {
		t.Fatalf("balances after transfer: alice=%d bob=%d", tok.BalanceOf(alice), tok.BalanceOf(bob))
	}
	if err := tok.Transfer(alice, bob, 1_000); !errors.Is(err, market.ErrInsufficient) {
		t.Fatalf("over-transfer: got %v", err)
	}
	// Direct ProxyTransfer with a forged caller identity must be rejected.
	if err := m.ProxyTransfer("FORGED", market.Wood, alice, bob, 1); !errors.Is(err, market.ErrRestricted) {
		t.Fatalf("forged proxy: got %v", err)
	}
	if tok.TotalSupply() != m.Supply(market.Wood) {
		t.Fatalf("proxy supply mismatch")
	}
}
