package market

import "sort"

// MarketState is the full serializable market state, with every map flattened
// into a sorted slice so the encoding is canonical. Used by snapshots and by
// the state digest.
type MarketState struct {
	Initialized bool            `json:"initialized"`
	Creator     Address         `json:"creator"`
	Authorities []Address       `json:"authorities"`
	Yesterday   int64           `json:"yesterday"`
	Resources   []ResourceState `json:"resources"`
}

type ResourceState struct {
	Supply         uint64         `json:"supply"`
	Funds          uint64         `json:"funds"`
	Stash          uint64         `json:"stash"`
	PriceYesterday uint64         `json:"price_yesterday"`
	Proxy          Address        `json:"proxy,omitempty"`
	Balances       []BalanceEntry `json:"balances"`
}

type BalanceEntry struct {
	Address Address `json:"address"`
	Amount  uint64  `json:"amount"`
}

func (m *Market) Export() MarketState {
	s := MarketState{
		Initialized: m.initialized,
		Creator:     m.creator,
		Yesterday:   m.yesterday,
	}
	for a := range m.authorities {
		s.Authorities = append(s.Authorities, a)
	}
	sort.Slice(s.Authorities, func(i, j int) bool { return s.Authorities[i] < s.Authorities[j] })
	for _, rs := range m.res {
		out := ResourceState{
			Supply:         rs.supply,
			Funds:          rs.funds,
			Stash:          rs.stash,
			PriceYesterday: rs.priceYesterday,
			Proxy:          rs.proxy,
		}
		for a, v := range rs.balances {
			out.Balances = append(out.Balances, BalanceEntry{a, v})
		}
		sort.Slice(out.Balances, func(i, j int) bool { return out.Balances[i].Address < out.Balances[j].Address })
		s.Resources = append(s.Resources, out)
	}
	return s
}

// Import replaces the market state wholesale. The connector weight stays as
// constructed; it is tuning, not state.
func (m *Market) Import(s MarketState) error {
	if len(s.Resources) != NumResources {
		return ErrInvalid
	}
	m.initialized = s.Initialized
	m.creator = s.Creator
	m.yesterday = s.Yesterday
	m.authorities = map[Address]bool{}
	for _, a := range s.Authorities {
		m.authorities[a] = true
	}
	for r := range m.res {
		in := s.Resources[r]
		rs := &resourceState{
			supply:         in.Supply,
			funds:          in.Funds,
			stash:          in.Stash,
			priceYesterday: in.PriceYesterday,
			proxy:          in.Proxy,
			balances:       map[Address]uint64{},
		}
		for _, b := range in.Balances {
			rs.balances[b.Address] = b.Amount
		}
		m.res[r] = rs
	}
	return nil
}
