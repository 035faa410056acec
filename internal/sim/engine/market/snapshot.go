package market

// Snapshot captures the market scalars plus the balance entries of a bounded
// address set, so a failed multi-step operation can be rolled back without
// copying every holder.
type Snapshot struct {
	yesterday int64
	res       [NumResources]scalarSnap
	entries   []balanceSnap
}

type scalarSnap struct {
	supply         uint64
	funds          uint64
	stash          uint64
	priceYesterday uint64
}

type balanceSnap struct {
	r       Resource
	addr    Address
	amount  uint64
	present bool
}

// SnapshotScoped records the market scalars and the balances of addrs across
// all resources. Restore is only sound if no balance outside addrs was
// touched between the two calls.
func (m *Market) SnapshotScoped(addrs ...Address) *Snapshot {
	s := &Snapshot{yesterday: m.yesterday}
	for r, rs := range m.res {
		s.res[r] = scalarSnap{
			supply:         rs.supply,
			funds:          rs.funds,
			stash:          rs.stash,
			priceYesterday: rs.priceYesterday,
		}
		for _, a := range addrs {
			v, ok := rs.balances[a]
			s.entries = append(s.entries, balanceSnap{Resource(r), a, v, ok})
		}
	}
	return s
}

// Restore puts back everything SnapshotScoped recorded.
func (m *Market) Restore(s *Snapshot) {
	m.yesterday = s.yesterday
	for r, rs := range m.res {
		rs.supply = s.res[r].supply
		rs.funds = s.res[r].funds
		rs.stash = s.res[r].stash
		rs.priceYesterday = s.res[r].priceYesterday
	}
	for _, e := range s.entries {
		rs := m.res[e.r]
		if e.present {
			rs.balances[e.addr] = e.amount
		} else {
			delete(rs.balances, e.addr)
		}
	}
}
