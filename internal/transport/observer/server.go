// Package observer serves the read-only HTTP query surface. Every handler is
// a thin JSON shim over an engine query; none of them can mutate state.
package observer

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hexopolis.gg/internal/protocol"
	"hexopolis.gg/internal/sim/engine"
)

type Server struct {
	eng   *engine.Engine
	log   *zap.SugaredLogger
	clock func() int64
}

func NewServer(eng *engine.Engine, logger *zap.SugaredLogger) *Server {
	return &Server{
		eng:   eng,
		log:   logger,
		clock: func() int64 { return time.Now().Unix() },
	}
}

// SetClock overrides the query timestamp source. Tests only.
func (s *Server) SetClock(fn func() int64) { s.clock = fn }

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/tile", s.handleTile)
	mux.HandleFunc("/v1/cost", s.handleCost)
	mux.HandleFunc("/v1/market", s.handleMarket)
	mux.HandleFunc("/v1/stats", s.handleStats)
	mux.HandleFunc("/v1/account", s.handleAccount)
	mux.HandleFunc("/v1/bought", s.handleBought)
	// Operator endpoints; never exposed beyond the host.
	mux.HandleFunc("/v1/digest", s.loopbackOnly(s.handleDigest))
	mux.HandleFunc("/v1/export", s.loopbackOnly(s.handleExport))
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeOK(rw, map[string]string{"status": "ok"})
}

func (s *Server) handleTile(rw http.ResponseWriter, r *http.Request) {
	x, y, ok := coordParams(rw, r)
	if !ok {
		return
	}
	v, err := s.eng.DescribeTile(x, y, s.clock())
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeOK(rw, v)
}

func (s *Server) handleCost(rw http.ResponseWriter, r *http.Request) {
	x, y, ok := coordParams(rw, r)
	if !ok {
		return
	}
	raw, ok := blocksParam(rw, r)
	if !ok {
		return
	}
	cost, err := s.eng.QuoteBuild(x, y, raw)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeOK(rw, map[string]any{"cost": cost})
}

func (s *Server) handleMarket(rw http.ResponseWriter, r *http.Request) {
	writeOK(rw, s.eng.MarketInfo())
}

func (s *Server) handleStats(rw http.ResponseWriter, r *http.Request) {
	writeOK(rw, s.eng.StatsInfo(s.clock()))
}

func (s *Server) handleAccount(rw http.ResponseWriter, r *http.Request) {
	addr := strings.TrimSpace(r.URL.Query().Get("addr"))
	if addr == "" {
		badRequest(rw, "addr required")
		return
	}
	writeOK(rw, s.eng.Account(engine.Address(addr)))
}

func (s *Server) handleBought(rw http.ResponseWriter, r *http.Request) {
	offset := intParam(r, "offset", 0)
	limit := intParam(r, "limit", 100)
	if limit > 1000 {
		limit = 1000
	}
	ids := s.eng.TilesBought(offset, limit)
	writeOK(rw, map[string]any{"offset": offset, "tile_ids": ids})
}

func (s *Server) handleDigest(rw http.ResponseWriter, r *http.Request) {
	writeOK(rw, map[string]string{"digest": s.eng.Digest()})
}

func (s *Server) handleExport(rw http.ResponseWriter, r *http.Request) {
	writeOK(rw, s.eng.ExportState())
}

func (s *Server) loopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			s.log.Warnw("operator endpoint refused", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next(rw, r)
	}
}

func coordParams(rw http.ResponseWriter, r *http.Request) (x, y int, ok bool) {
	q := r.URL.Query()
	x, errX := strconv.Atoi(q.Get("x"))
	y, errY := strconv.Atoi(q.Get("y"))
	if errX != nil || errY != nil {
		badRequest(rw, "x and y must be integers")
		return 0, 0, false
	}
	return x, y, true
}

// blocksParam parses ?blocks=0,1,2 into raw block kinds.
func blocksParam(rw http.ResponseWriter, r *http.Request) ([]uint8, bool) {
	spec := r.URL.Query().Get("blocks")
	if spec == "" {
		badRequest(rw, "blocks required")
		return nil, false
	}
	parts := strings.Split(spec, ",")
	if len(parts) > engine.MaxHeight {
		badRequest(rw, "too many blocks")
		return nil, false
	}
	raw := make([]uint8, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			badRequest(rw, "blocks must be bytes")
			return nil, false
		}
		raw = append(raw, uint8(n))
	}
	return raw, true
}

func intParam(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writeOK(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func writeErr(rw http.ResponseWriter, err error) {
	code := engine.CodeFor(err)
	status := http.StatusBadRequest
	switch code {
	case protocol.ErrNotFound:
		status = http.StatusNotFound
	case protocol.ErrInternal:
		status = http.StatusInternalServerError
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(map[string]string{"code": code, "message": err.Error()})
}

func badRequest(rw http.ResponseWriter, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(rw).Encode(map[string]string{"code": protocol.ErrProtoBadRequest, "message": msg})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
