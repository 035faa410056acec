package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hexopolis.gg/internal/protocol"
	"hexopolis.gg/internal/sim/engine"
	"hexopolis.gg/internal/sim/tuning"
)

func dialTestServer(t *testing.T) (*websocket.Conn, *engine.Engine, int64) {
	t.Helper()
	tune := tuning.Defaults()
	now := tune.Calendar.StartUnix + tune.Calendar.WeekLengthS
	eng := engine.New(tune, "ADMIN")
	if err := eng.Initialize("ADMIN", now); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	go eng.Run()
	t.Cleanup(eng.Stop)

	srv, err := NewServer(eng, "../../../schemas", zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.SetClock(func() int64 { return now })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, eng, now
}

func TestHandshakeAndAct(t *testing.T) {
	conn, eng, _ := dialTestServer(t)

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AccountName: "alice"}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("send HELLO: %v", err)
	}

	var welcome protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read WELCOME: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome || welcome.AccountID != "alice" || welcome.SessionID == "" {
		t.Fatalf("welcome: %+v", welcome)
	}
	if welcome.WorldParams.InstanceID != eng.Tuning().InstanceID {
		t.Fatalf("world params: %+v", welcome.WorldParams)
	}

	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Instants: []protocol.InstantReq{
			{ID: "f1", Type: protocol.InstFund, Payment: 1_000_000},
		},
	}
	if err := conn.WriteJSON(act); err != nil {
		t.Fatalf("send ACT: %v", err)
	}

	var events protocol.EventsMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&events); err != nil {
		t.Fatalf("read EVENTS: %v", err)
	}
	if len(events.Events) == 0 || events.Events[0]["ok"] != true {
		t.Fatalf("events: %+v", events.Events)
	}

	if got := eng.Account("alice").Wallet; got != 1_000_000 {
		t.Fatalf("wallet: got %d", got)
	}
}

func TestHandshakeRejectsNonHello(t *testing.T) {
	conn, _, _ := dialTestServer(t)

	if err := conn.WriteJSON(map[string]any{"type": "ACT", "protocol_version": protocol.Version}); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected close after bad handshake")
	}
}

func TestMalformedActIsIgnored(t *testing.T) {
	conn, eng, _ := dialTestServer(t)

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AccountName: "bob"}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read WELCOME: %v", err)
	}

	// Unknown instant type fails schema validation and never reaches the
	// engine; a valid batch afterwards still works.
	bad, _ := json.Marshal(map[string]any{
		"type": "ACT", "protocol_version": protocol.Version,
		"instants": []map[string]any{{"id": "x", "type": "TELEPORT"}},
	})
	if err := conn.WriteMessage(websocket.TextMessage, bad); err != nil {
		t.Fatalf("send bad ACT: %v", err)
	}
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Instants:        []protocol.InstantReq{{ID: "f1", Type: protocol.InstFund, Payment: 7}},
	}
	if err := conn.WriteJSON(act); err != nil {
		t.Fatalf("send ACT: %v", err)
	}

	var events protocol.EventsMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&events); err != nil {
		t.Fatalf("read EVENTS: %v", err)
	}
	if events.Events[0]["id"] != "f1" {
		t.Fatalf("first event should be the valid fund result: %+v", events.Events)
	}
	if got := eng.Account("bob").Wallet; got != 7 {
		t.Fatalf("wallet: got %d", got)
	}
}
