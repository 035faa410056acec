package engine

import (
	"encoding/json"

	"hexopolis.gg/internal/protocol"
)

type queryReq struct {
	fn   func()
	done chan struct{}
}

// Run owns all engine state until Stop. Commands, queries and subscription
// churn all funnel through here, so no other synchronization exists anywhere
// in the package.
func (e *Engine) Run() {
	for {
		select {
		case cmd := <-e.inbox:
			events := e.apply(cmd)
			if cmd.Resp != nil {
				cmd.Resp <- events
			}
			e.broadcast(events)
		case q := <-e.queries:
			q.fn()
			close(q.done)
		case <-e.stop:
			return
		}
	}
}

func (e *Engine) Stop() { close(e.stop) }

// Submit queues one command for the loop. Blocks when the inbox is full.
func (e *Engine) Submit(cmd Command) {
	select {
	case e.inbox <- cmd:
	case <-e.stop:
	}
}

// Subscribe registers an event feed for a session. The channel is shallow;
// a slow consumer sees the latest batch, not every batch. The feed is live
// once Subscribe returns.
func (e *Engine) Subscribe(id string) chan []byte {
	ch := make(chan []byte, 1)
	e.do(func() { e.subs[id] = ch })
	return ch
}

func (e *Engine) Unsubscribe(id string) {
	e.do(func() { delete(e.subs, id) })
}

func (e *Engine) broadcast(events []protocol.Event) {
	if len(events) == 0 || len(e.subs) == 0 {
		return
	}
	msg := protocol.EventsMsg{
		Type:            protocol.TypeEvents,
		ProtocolVersion: protocol.Version,
		Events:          events,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		e.log.Errorw("events marshal failed", "err", err)
		return
	}
	for _, ch := range e.subs {
		sendLatest(ch, b)
	}
}

// sendLatest never blocks the loop: when the consumer lags, the stale batch
// is dropped in favor of the new one.
func sendLatest(ch chan []byte, b []byte) {
	for {
		select {
		case ch <- b:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// do runs fn on the loop goroutine and waits for it. Safe to call from any
// goroutine while Run is live; returns immediately once the engine stopped.
func (e *Engine) do(fn func()) {
	q := queryReq{fn: fn, done: make(chan struct{})}
	select {
	case e.queries <- q:
	case <-e.stop:
		return
	}
	select {
	case <-q.done:
	case <-e.stop:
	}
}
