package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"hexopolis.gg/internal/protocol"
	"hexopolis.gg/internal/sim/engine"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
)

type Server struct {
	eng   *engine.Engine
	log   *zap.SugaredLogger
	clock func() int64

	helloSchema *jsonschema.Schema
	actSchema   *jsonschema.Schema

	upgrader websocket.Upgrader
}

// NewServer compiles the wire schemas up front so a malformed schema file
// fails the boot, not the first client.
func NewServer(eng *engine.Engine, schemaDir string, logger *zap.SugaredLogger) (*Server, error) {
	helloSchema, err := jsonschema.Compile(filepath.Join(schemaDir, "hello.schema.json"))
	if err != nil {
		return nil, err
	}
	actSchema, err := jsonschema.Compile(filepath.Join(schemaDir, "act.schema.json"))
	if err != nil {
		return nil, err
	}
	return &Server{
		eng:         eng,
		log:         logger,
		clock:       func() int64 { return time.Now().Unix() },
		helloSchema: helloSchema,
		actSchema:   actSchema,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}, nil
}

// SetClock overrides the submission timestamp source. Tests only.
func (s *Server) SetClock(fn func() int64) { s.clock = fn }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		account, sessionID := s.handshake(conn)
		if sessionID == "" {
			return
		}
		s.log.Infow("session open", "session", sessionID, "account", account, "remote", r.RemoteAddr)

		events := s.eng.Subscribe(sessionID)
		defer s.eng.Unsubscribe(sessionID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine: the engine loop never blocks on this connection,
		// it drops stale batches instead.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-events:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			act, ok := s.decodeAct(msg)
			if !ok {
				continue
			}
			s.eng.Submit(engine.Command{
				Account: account,
				Now:     s.clock(),
				Req:     act,
			})
		}

		s.log.Infow("session closed", "session", sessionID, "account", account)
	}
}

// handshake expects exactly one HELLO and answers with WELCOME. Anything else
// closes the connection before a session exists.
func (s *Server) handshake(conn *websocket.Conn) (account engine.Address, sessionID string) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", ""
	}

	if err := validate(s.helloSchema, msg); err != nil {
		closePolicy(conn, "expected HELLO")
		return "", ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", ""
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return "", ""
	}

	account = engine.Address(hello.AccountName)
	sessionID = uuid.NewString()

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		AccountID:       string(account),
		WorldParams:     s.eng.WorldParams(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", ""
	}
	return account, sessionID
}

// decodeAct gates every inbound command batch on the wire schema, so the
// engine only ever sees well-formed requests.
func (s *Server) decodeAct(msg []byte) (protocol.ActMsg, bool) {
	if err := validate(s.actSchema, msg); err != nil {
		s.log.Debugw("act rejected", "err", err)
		return protocol.ActMsg{}, false
	}
	var act protocol.ActMsg
	if err := json.Unmarshal(msg, &act); err != nil {
		return protocol.ActMsg{}, false
	}
	if act.ProtocolVersion != protocol.Version {
		return protocol.ActMsg{}, false
	}
	return act, true
}

func validate(s *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
