// bot is a simple load client: it joins as one account, funds a wallet, buys
// tiles in a growing spiral around the genesis tile, builds random towers and
// collects. Useful for soaking a dev server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"hexopolis.gg/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "account name")
		interval = flag.Duration("interval", 2*time.Second, "delay between act batches")
		funding  = flag.Uint64("funding", 10_000_000, "native amount deposited per FUND")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AccountName:     *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	// Reader: log action results and session metadata.
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeWelcome:
				var w protocol.WelcomeMsg
				if err := json.Unmarshal(msg, &w); err != nil {
					continue
				}
				logger.Printf("WELCOME session=%s account=%s instance=%s", w.SessionID, w.AccountID, w.WorldParams.InstanceID)
			case protocol.TypeEvents:
				var ev protocol.EventsMsg
				if err := json.Unmarshal(msg, &ev); err != nil {
					continue
				}
				for _, e := range ev.Events {
					if e["type"] == protocol.EvActionResult && e["ok"] != true {
						logger.Printf("rejected id=%v code=%v", e["id"], e["code"])
					}
				}
			}
		}
	}()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	send := func(instants ...protocol.InstantReq) {
		act := protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Instants:        instants,
		}
		if err := conn.WriteJSON(act); err != nil {
			logger.Fatalf("send ACT: %v", err)
		}
	}

	send(protocol.InstantReq{ID: "I_fund_0", Type: protocol.InstFund, Payment: *funding})

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	seq := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		seq++
		// One tile per 4-step cycle: fund, buy, build, collect.
		x, y := spiral(seq/4 + 1)
		switch seq % 4 {
		case 0:
			send(protocol.InstantReq{ID: fmt.Sprintf("I_fund_%d", seq), Type: protocol.InstFund, Payment: *funding})
		case 1:
			send(protocol.InstantReq{ID: fmt.Sprintf("I_buy_%d", seq), Type: protocol.InstBuyTile, X: x, Y: y, Payment: *funding})
		case 2:
			blocks := make([]uint8, 1+r.Intn(3))
			for i := range blocks {
				blocks[i] = uint8(r.Intn(3))
			}
			send(protocol.InstantReq{ID: fmt.Sprintf("I_build_%d", seq), Type: protocol.InstBuildBlocks, X: x, Y: y, Blocks: blocks})
		case 3:
			send(protocol.InstantReq{ID: fmt.Sprintf("I_collect_%d", seq), Type: protocol.InstCollect, X: x, Y: y})
		}
	}
}

// spiral walks the axial neighbor ring outward so successive buys stay
// adjacent to owned land.
func spiral(n int) (int, int) {
	dirs := [6][2]int{{1, 0}, {0, 1}, {-1, 1}, {-1, 0}, {0, -1}, {1, -1}}
	x, y := 0, 0
	ring := 1
	i := 0
	for {
		for d := 0; d < 6; d++ {
			for step := 0; step < ring; step++ {
				x += dirs[d][0]
				y += dirs[d][1]
				i++
				if i >= n {
					return x, y
				}
			}
		}
		ring++
	}
}
