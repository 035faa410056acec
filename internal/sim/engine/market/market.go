// Package market maintains one continuous bonded curve per resource: price
// rises as supply and reserve grow, following a constant-connector-weight
// formula. All entry points are check-first: a failed call mutates nothing.
package market

import (
	"errors"

	"hexopolis.gg/internal/sim/engine/logic/fixedmath"
)

type Address string

// SelfAddress holds the permanent supply lock minted at init.
const SelfAddress Address = "MARKET"

type Resource int

const (
	Wood Resource = iota
	Stone
	Glass

	NumResources = 3
)

func (r Resource) String() string {
	switch r {
	case Wood:
		return "WOOD"
	case Stone:
		return "STONE"
	case Glass:
		return "GLASS"
	default:
		return "UNKNOWN"
	}
}

// Amounts is a per-resource quantity vector.
type Amounts [NumResources]uint64

func (a Amounts) IsZero() bool {
	for _, v := range a {
		if v != 0 {
			return false
		}
	}
	return true
}

var (
	ErrAlreadyInit  = errors.New("market: already initialized")
	ErrNotInit      = errors.New("market: not initialized")
	ErrRestricted   = errors.New("market: restricted")
	ErrInsufficient = errors.New("market: insufficient")
	ErrInvalid      = errors.New("market: invalid")

	errEmptyCurve = ErrInvalid
)

const secondsPerDay = 86_400

type resourceState struct {
	supply         uint64
	funds          uint64
	stash          uint64
	priceYesterday uint64
	balances       map[Address]uint64
	proxy          Address
}

type Market struct {
	cwPPM       uint64
	initialized bool
	creator     Address
	authorities map[Address]bool
	res         [NumResources]*resourceState
	yesterday   int64 // day index of the last priceYesterday snapshot
}

func New(connectorWeightPPM uint64) *Market {
	m := &Market{
		cwPPM:       connectorWeightPPM,
		authorities: map[Address]bool{},
	}
	for r := range m.res {
		m.res[r] = &resourceState{balances: map[Address]uint64{}}
	}
	return m
}

// Init is the one-shot lifecycle gate: it mints a permanent supply lock held
// by the market itself for every resource, splits initialFunds evenly across
// the curves (remainder to the first resource), and snapshots priceYesterday.
func (m *Market) Init(caller, creator Address, supplyLock, initialFunds uint64, now int64) error {
	if m.initialized {
		return ErrAlreadyInit
	}
	if creator == "" || caller != creator {
		return ErrRestricted
	}
	if supplyLock == 0 {
		return ErrInvalid
	}
	per := initialFunds / NumResources
	rem := initialFunds % NumResources

	m.creator = creator
	m.authorities[creator] = true
	for r, rs := range m.res {
		rs.supply = supplyLock
		rs.balances[SelfAddress] = supplyLock
		rs.funds = per
		if r == 0 {
			rs.funds += rem
		}
	}
	m.initialized = true
	m.yesterday = dayIndex(now)
	for _, rs := range m.res {
		rs.priceYesterday = unitPrice(rs.supply, rs.funds, m.cwPPM)
	}
	return nil
}

func (m *Market) Initialized() bool { return m.initialized }

func (m *Market) AddAuthority(caller, addr Address) error {
	if !m.initialized {
		return ErrNotInit
	}
	if caller != m.creator {
		return ErrRestricted
	}
	m.authorities[addr] = true
	return nil
}

func (m *Market) IsAuthority(addr Address) bool { return m.authorities[addr] }

// BindProxy registers the token-proxy identity for a resource; set once.
func (m *Market) BindProxy(caller Address, r Resource, proxy Address) error {
	if !m.initialized {
		return ErrNotInit
	}
	if !m.authorities[caller] {
		return ErrRestricted
	}
	if r < 0 || r >= NumResources || proxy == "" || m.res[r].proxy != "" {
		return ErrInvalid
	}
	m.res[r].proxy = proxy
	return nil
}

// Touch snapshots every resource's current price into priceYesterday when at
// least one full day elapsed. It is a lazy, call-triggered cron: every
// mutating entry point runs it first.
func (m *Market) Touch(now int64) {
	if !m.initialized {
		return
	}
	d := dayIndex(now)
	if d <= m.yesterday {
		return
	}
	for _, rs := range m.res {
		rs.priceYesterday = unitPrice(rs.supply, rs.funds, m.cwPPM)
	}
	m.yesterday = d
}

func dayIndex(now int64) int64 {
	if now < 0 {
		return 0
	}
	return now / secondsPerDay
}

// unitPrice is the spot price of one whole token unit (PPMOne base units):
// UnitPPM * funds / (supply * cw / PPMOne).
func unitPrice(supply, funds, cwPPM uint64) uint64 {
	weighted, err := fixedmath.MulDiv(supply, cwPPM, fixedmath.PPMOne)
	if err != nil || weighted == 0 {
		return 0
	}
	p, err := fixedmath.MulDiv(funds, fixedmath.PPMOne, weighted)
	if err != nil {
		return ^uint64(0)
	}
	return p
}

// Buy mints curve tokens for the caller. spends[r] native units buy into
// resource r; their sum must not exceed the attached payment, and the excess
// is returned as a refund. Fully atomic: all returns are computed before any
// state is touched.
func (m *Market) Buy(caller Address, spends Amounts, payment uint64, now int64) (out Amounts, refund uint64, err error) {
	if !m.initialized {
		return out, 0, ErrNotInit
	}
	if caller == "" {
		return out, 0, ErrInvalid
	}
	m.Touch(now)

	var total uint64
	for _, s := range spends {
		total, err = fixedmath.Add(total, s)
		if err != nil {
			return out, 0, err
		}
	}
	if total > payment {
		return out, 0, ErrInsufficient
	}
	for r, rs := range m.res {
		if spends[r] == 0 {
			continue
		}
		tokens, perr := purchaseReturn(rs.supply, rs.funds, m.cwPPM, spends[r])
		if perr != nil {
			return Amounts{}, 0, perr
		}
		if _, perr = fixedmath.Add(rs.supply, tokens); perr != nil {
			return Amounts{}, 0, perr
		}
		if _, perr = fixedmath.Add(rs.balances[caller], tokens); perr != nil {
			return Amounts{}, 0, perr
		}
		out[r] = tokens
	}
	// Commit.
	for r, rs := range m.res {
		if spends[r] == 0 {
			continue
		}
		rs.funds += spends[r]
		rs.supply += out[r]
		rs.balances[caller] += out[r]
	}
	return out, payment - total, nil
}

// Sell burns caller tokens and pays out native currency, aggregated across
// resources into one payout.
func (m *Market) Sell(caller Address, amounts Amounts, now int64) (payout uint64, err error) {
	if !m.initialized {
		return 0, ErrNotInit
	}
	m.Touch(now)

	var returns Amounts
	for r, rs := range m.res {
		if amounts[r] == 0 {
			continue
		}
		if rs.balances[caller] < amounts[r] {
			return 0, ErrInsufficient
		}
		ret, serr := saleReturn(rs.supply, rs.funds, m.cwPPM, amounts[r])
		if serr != nil {
			return 0, serr
		}
		if ret > rs.funds {
			return 0, ErrInvalid
		}
		returns[r] = ret
		payout, serr = fixedmath.Add(payout, ret)
		if serr != nil {
			return 0, serr
		}
	}
	// Commit.
	for r, rs := range m.res {
		if amounts[r] == 0 {
			continue
		}
		rs.balances[caller] -= amounts[r]
		if rs.balances[caller] == 0 {
			delete(rs.balances, caller)
		}
		rs.supply -= amounts[r]
		rs.funds -= returns[r]
	}
	return payout, nil
}

// Mint credits tokens to a recipient, draining the stash pool before
// inflating supply: only the shortfall beyond available stash mints new
// tokens. Authority-only.
func (m *Market) Mint(caller, to Address, amounts Amounts, now int64) error {
	if !m.initialized {
		return ErrNotInit
	}
	if !m.authorities[caller] {
		return ErrRestricted
	}
	if to == "" {
		return ErrInvalid
	}
	m.Touch(now)

	for r, rs := range m.res {
		if amounts[r] == 0 {
			continue
		}
		fromStash := amounts[r]
		if fromStash > rs.stash {
			fromStash = rs.stash
		}
		minted := amounts[r] - fromStash
		if _, err := fixedmath.Add(rs.supply, minted); err != nil {
			return err
		}
		if _, err := fixedmath.Add(rs.balances[to], amounts[r]); err != nil {
			return err
		}
	}
	for r, rs := range m.res {
		if amounts[r] == 0 {
			continue
		}
		fromStash := amounts[r]
		if fromStash > rs.stash {
			fromStash = rs.stash
		}
		rs.stash -= fromStash
		rs.supply += amounts[r] - fromStash
		rs.balances[to] += amounts[r]
	}
	return nil
}

// Burn destroys tokens from an account. Authority-only.
func (m *Market) Burn(caller, from Address, amounts Amounts, now int64) error {
	if !m.initialized {
		return ErrNotInit
	}
	if !m.authorities[caller] {
		return ErrRestricted
	}
	m.Touch(now)

	for r, rs := range m.res {
		if amounts[r] != 0 && rs.balances[from] < amounts[r] {
			return ErrInsufficient
		}
	}
	for r, rs := range m.res {
		if amounts[r] == 0 {
			continue
		}
		rs.balances[from] -= amounts[r]
		if rs.balances[from] == 0 {
			delete(rs.balances, from)
		}
		rs.supply -= amounts[r]
	}
	return nil
}

// Stash parks an account's tokens in the pre-fund pool. Supply is unchanged;
// subsequent mints drain the pool before inflating. Authority-only (the tile
// engine pre-pays construction costs through here).
func (m *Market) Stash(caller, from Address, amounts Amounts, now int64) error {
	if !m.initialized {
		return ErrNotInit
	}
	if !m.authorities[caller] {
		return ErrRestricted
	}
	m.Touch(now)

	for r, rs := range m.res {
		if amounts[r] == 0 {
			continue
		}
		if rs.balances[from] < amounts[r] {
			return ErrInsufficient
		}
		if _, err := fixedmath.Add(rs.stash, amounts[r]); err != nil {
			return err
		}
	}
	for r, rs := range m.res {
		if amounts[r] == 0 {
			continue
		}
		rs.balances[from] -= amounts[r]
		if rs.balances[from] == 0 {
			delete(rs.balances, from)
		}
		rs.stash += amounts[r]
	}
	return nil
}

// Transfer moves balances between accounts for every resource at once.
func (m *Market) Transfer(from, to Address, amounts Amounts, now int64) error {
	if !m.initialized {
		return ErrNotInit
	}
	if from == "" || to == "" {
		return ErrInvalid
	}
	m.Touch(now)

	for r, rs := range m.res {
		if amounts[r] == 0 {
			continue
		}
		if rs.balances[from] < amounts[r] {
			return ErrInsufficient
		}
		if _, err := fixedmath.Add(rs.balances[to], amounts[r]); err != nil {
			return err
		}
	}
	for r, rs := range m.res {
		if amounts[r] == 0 {
			continue
		}
		rs.balances[from] -= amounts[r]
		if rs.balances[from] == 0 {
			delete(rs.balances, from)
		}
		rs.balances[to] += amounts[r]
	}
	return nil
}

// ProxyTransfer moves a single resource on behalf of `from`; callable only by
// the resource's own bound token proxy.
func (m *Market) ProxyTransfer(callerProxy Address, r Resource, from, to Address, amount uint64) error {
	if !m.initialized {
		return ErrNotInit
	}
	if r < 0 || r >= NumResources {
		return ErrInvalid
	}
	rs := m.res[r]
	if rs.proxy == "" || callerProxy != rs.proxy {
		return ErrRestricted
	}
	if from == "" || to == "" {
		return ErrInvalid
	}
	if rs.balances[from] < amount {
		return ErrInsufficient
	}
	if _, err := fixedmath.Add(rs.balances[to], amount); err != nil {
		return err
	}
	rs.balances[from] -= amount
	if rs.balances[from] == 0 {
		delete(rs.balances, from)
	}
	rs.balances[to] += amount
	return nil
}

// Quotes.

func (m *Market) Price(r Resource) uint64 {
	if r < 0 || r >= NumResources {
		return 0
	}
	rs := m.res[r]
	return unitPrice(rs.supply, rs.funds, m.cwPPM)
}

func (m *Market) PriceYesterday(r Resource) uint64 {
	if r < 0 || r >= NumResources {
		return 0
	}
	return m.res[r].priceYesterday
}

func (m *Market) Supply(r Resource) uint64 {
	if r < 0 || r >= NumResources {
		return 0
	}
	return m.res[r].supply
}

func (m *Market) Funds(r Resource) uint64 {
	if r < 0 || r >= NumResources {
		return 0
	}
	return m.res[r].funds
}

func (m *Market) StashOf(r Resource) uint64 {
	if r < 0 || r >= NumResources {
		return 0
	}
	return m.res[r].stash
}

func (m *Market) BalanceOf(addr Address, r Resource) uint64 {
	if r < 0 || r >= NumResources {
		return 0
	}
	return m.res[r].balances[addr]
}

func (m *Market) BalancesOf(addr Address) Amounts {
	var out Amounts
	for r, rs := range m.res {
		out[r] = rs.balances[addr]
	}
	return out
}

// MintToStash mints tokens straight into the stash pool, bypassing every
// balance. Used by the tile engine when a resource share lands on an unowned
// neighbor: the diverted production stays accounted (supply and stash grow
// together) and later mints drain it back out without further inflation.
// Authority-only.
func (m *Market) MintToStash(caller Address, amounts Amounts, now int64) error {
	if !m.initialized {
		return ErrNotInit
	}
	if !m.authorities[caller] {
		return ErrRestricted
	}
	m.Touch(now)
	for r, rs := range m.res {
		if amounts[r] == 0 {
			continue
		}
		if _, err := fixedmath.Add(rs.stash, amounts[r]); err != nil {
			return err
		}
		if _, err := fixedmath.Add(rs.supply, amounts[r]); err != nil {
			return err
		}
	}
	for r, rs := range m.res {
		rs.stash += amounts[r]
		rs.supply += amounts[r]
	}
	return nil
}
