package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AccountName     string `json:"account_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	AccountID       string      `json:"account_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	InstanceID    string `json:"instance_id"`
	NumResources  int    `json:"num_resources"`
	MaxHeight     int    `json:"max_height"`
	CalendarStart int64  `json:"calendar_start"`
	WeekLengthS   int64  `json:"week_length_s"`
	TotalWeeks    int    `json:"total_weeks"`
	TuningDigest  string `json:"tuning_digest"`
}

// ACT (client -> server): a batch of instant commands, applied in order.
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Instants        []InstantReq `json:"instants"`
}

// Instant command types.
const (
	InstBuyTile        = "BUY_TILE"
	InstBuildBlocks    = "BUILD_BLOCKS"
	InstCollect        = "COLLECT"
	InstRename         = "RENAME"
	InstMarketBuy      = "MARKET_BUY"
	InstMarketSell     = "MARKET_SELL"
	InstStash          = "STASH"
	InstTransfer       = "TRANSFER"
	InstCollectCredits = "COLLECT_CREDITS"
	InstCollectFees    = "COLLECT_FEES"
	InstFund           = "FUND"
)

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`

	// Payment attached to payable commands (BUY_TILE, MARKET_BUY, FUND).
	Payment uint64 `json:"payment,omitempty"`

	// Block kinds, bottom-first, for BUILD_BLOCKS.
	Blocks []uint8 `json:"blocks,omitempty"`

	// Per-resource amounts for MARKET_BUY (spends), MARKET_SELL / STASH /
	// TRANSFER (token amounts).
	Amounts []uint64 `json:"amounts,omitempty"`

	To   string `json:"to,omitempty"`
	Name string `json:"name,omitempty"`
}

// EVENTS (server -> client)
type EventsMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Events          []Event `json:"events"`
}
