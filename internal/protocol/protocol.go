package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeAct     = "ACT"
	TypeEvents  = "EVENTS"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Event is a loosely typed server->client event payload.
type Event map[string]any

// Event type tags emitted by the engine.
const (
	EvActionResult  = "ACTION_RESULT"
	EvBought        = "BOUGHT"
	EvBuilt         = "BUILT"
	EvCollected     = "COLLECTED"
	EvCredited      = "CREDITED"
	EvFeesCollected = "FEES_COLLECTED"
	EvMarketBuy     = "MARKET_BUY"
	EvMarketSold    = "MARKET_SOLD"
	EvFunded        = "FUNDED"
	EvRenamed       = "RENAMED"
)
