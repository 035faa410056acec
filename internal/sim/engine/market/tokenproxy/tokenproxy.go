// Package tokenproxy is the thin fungible-token facade over the market: one
// proxy per resource, delegating all balance state to the curve. Allowance
// bookkeeping is deliberately absent; transfers act on behalf of the caller
// only.
package tokenproxy

import "hexopolis.gg/internal/sim/engine/market"

type Token struct {
	m      *market.Market
	r      market.Resource
	id     market.Address
	symbol string
}

// Bind creates the proxy for one resource and registers its identity with
// the market, so ProxyTransfer accepts calls from it and nothing else.
func Bind(authority market.Address, m *market.Market, r market.Resource) (*Token, error) {
	t := &Token{
		m:      m,
		r:      r,
		id:     market.Address("TOKEN_" + r.String()),
		symbol: r.String(),
	}
	if err := m.BindProxy(authority, r, t.id); err != nil {
		return nil, err
	}
	return t, nil
}

// Attach recreates the facade for a resource whose binding already lives in
// restored market state. No registration happens.
func Attach(m *market.Market, r market.Resource) *Token {
	return &Token{
		m:      m,
		r:      r,
		id:     market.Address("TOKEN_" + r.String()),
		symbol: r.String(),
	}
}

func (t *Token) Symbol() string { return t.symbol }

func (t *Token) TotalSupply() uint64 { return t.m.Supply(t.r) }

func (t *Token) BalanceOf(addr market.Address) uint64 { return t.m.BalanceOf(addr, t.r) }

// Transfer moves amount from the calling account to another.
func (t *Token) Transfer(caller, to market.Address, amount uint64) error {
	return t.m.ProxyTransfer(t.id, t.r, caller, to, amount)
}
