package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger"

	"papertrader/src/datamodels"
	"papertrader/src/engine"
	"papertrader/src/portfolio"
	"papertrader/src/strategies"
	"papertrader/src/version"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Envelope is the wire format in both directions: a type tag plus an
// arbitrary JSON payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server is the host surface: a websocket stream of tick batches and
// portfolio updates, plus inbound trading commands, with a health probe
// and swagger UI on plain HTTP.
type Server struct {
	cfg      datamodels.ServerConfig
	engine   *engine.Engine
	upgrader websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*client]bool

	saveSession func() error

	httpServer *http.Server
}

func New(cfg datamodels.ServerConfig, eng *engine.Engine) *Server {
	return &Server{
		cfg:    cfg,
		engine: eng,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

// WithSessionSaver enables the save_session command. Without it the
// command reports that persistence is disabled.
func (s *Server) WithSessionSaver(save func() error) *Server {
	s.saveSession = save
	return s
}

// Start serves HTTP on the configured address and begins pumping tick
// batches to websocket clients. It returns once the listener is set up;
// serving continues until Shutdown.
func (s *Server) Start(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.HealthEndpoint, s.handleHealth)
	mux.HandleFunc(s.cfg.StreamEndpoint, s.handleStream)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.pumpBatches(ctx)
	go func() {
		slog.Info("Server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server stopped", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"build":  version.GetBuildInfo(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	response := struct {
		Portfolio  datamodels.PortfolioSnapshot `json:"portfolio"`
		Strategies []datamodels.StrategyInfo    `json:"strategies"`
	}{
		Portfolio:  s.engine.Snapshot(),
		Strategies: s.engine.Strategies(),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Warn("Snapshot encoding failed", "error", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()
	slog.Info("Websocket client connected", "remote", conn.RemoteAddr())

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) dropClient(c *client) {
	s.clientsMu.Lock()
	if s.clients[c] {
		delete(s.clients, c)
		close(c.send)
	}
	s.clientsMu.Unlock()
	_ = c.conn.Close()
}

func (s *Server) readPump(c *client) {
	defer s.dropClient(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Websocket read failed", "error", err)
			}
			return
		}
		s.handleCommand(c, message)
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast sends a typed payload to every connected client. Satisfies
// the metrics Broadcaster interface.
func (s *Server) Broadcast(messageType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Broadcast payload encoding failed", "type", messageType, "error", err)
		return
	}
	message, err := json.Marshal(Envelope{Type: messageType, Payload: raw})
	if err != nil {
		return
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- message:
		default:
			// Slow clients miss messages instead of stalling the rest.
		}
	}
}

func (s *Server) pumpBatches(ctx context.Context) {
	sub := s.engine.Subscribe()
	defer s.engine.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-sub.C:
			if !ok {
				return
			}
			s.Broadcast("tick", batch)
		}
	}
}

// Inbound command payloads.

type tradeCommand struct {
	Symbol datamodels.Symbol    `json:"symbol"`
	Side   datamodels.OrderSide `json:"side"`
	Amount float64              `json:"amount"`
}

type speedCommand struct {
	Multiplier float64 `json:"multiplier"`
}

type strategyToggleCommand struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type strategyParamsCommand struct {
	Name   string             `json:"name"`
	Params map[string]float64 `json:"params"`
}

type createStrategyCommand struct {
	Name  string            `json:"name"`
	Rules []strategies.Rule `json:"rules"`
}

type selectAssetCommand struct {
	Symbol datamodels.Symbol `json:"symbol"`
}

type placeOrderCommand struct {
	Order portfolio.ConditionalOrder `json:"order"`
}

type cancelOrderCommand struct {
	Id string `json:"id"`
}

func (s *Server) handleCommand(c *client, message []byte) {
	var envelope Envelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		s.reply(c, "error", map[string]string{"error": "malformed message"})
		return
	}

	var err error
	switch envelope.Type {
	case "trade":
		var cmd tradeCommand
		if err = json.Unmarshal(envelope.Payload, &cmd); err == nil {
			var tx datamodels.Transaction
			tx, err = s.engine.ManualTrade(cmd.Symbol, cmd.Side, cmd.Amount)
			if err == nil {
				s.reply(c, "transaction", tx)
				return
			}
		}
	case "set_speed":
		var cmd speedCommand
		if err = json.Unmarshal(envelope.Payload, &cmd); err == nil {
			err = s.engine.SetSpeed(cmd.Multiplier)
		}
	case "toggle_strategy":
		var cmd strategyToggleCommand
		if err = json.Unmarshal(envelope.Payload, &cmd); err == nil {
			err = s.engine.SetStrategyActive(cmd.Name, cmd.Active)
		}
	case "update_strategy":
		var cmd strategyParamsCommand
		if err = json.Unmarshal(envelope.Payload, &cmd); err == nil {
			err = s.engine.UpdateStrategyParams(cmd.Name, cmd.Params)
		}
	case "create_strategy":
		var cmd createStrategyCommand
		if err = json.Unmarshal(envelope.Payload, &cmd); err == nil {
			err = s.engine.CreateCustomStrategy(cmd.Name, cmd.Rules)
		}
	case "select_asset":
		var cmd selectAssetCommand
		if err = json.Unmarshal(envelope.Payload, &cmd); err == nil {
			err = s.engine.SelectAsset(cmd.Symbol)
		}
	case "place_order":
		var cmd placeOrderCommand
		if err = json.Unmarshal(envelope.Payload, &cmd); err == nil {
			var id string
			id, err = s.engine.PlaceConditionalOrder(cmd.Order)
			if err == nil {
				s.reply(c, "order_placed", map[string]string{"id": id})
				return
			}
		}
	case "cancel_order":
		var cmd cancelOrderCommand
		if err = json.Unmarshal(envelope.Payload, &cmd); err == nil {
			var cancelled bool
			cancelled, err = s.engine.CancelConditionalOrder(cmd.Id)
			if err == nil {
				s.reply(c, "order_cancelled", map[string]bool{"cancelled": cancelled})
				return
			}
		}
	case "save_session":
		if s.saveSession == nil {
			s.reply(c, "error", map[string]string{"error": "persistence disabled"})
			return
		}
		err = s.saveSession()
	case "snapshot":
		s.reply(c, "snapshot", s.engine.Snapshot())
		return
	case "strategies":
		s.reply(c, "strategies", s.engine.Strategies())
		return
	default:
		s.reply(c, "error", map[string]string{"error": "unknown command type " + envelope.Type})
		return
	}

	if err != nil {
		s.reply(c, "error", map[string]string{"error": err.Error()})
		return
	}
	s.reply(c, "ack", map[string]string{"type": envelope.Type})
}

func (s *Server) reply(c *client, messageType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	message, err := json.Marshal(Envelope{Type: messageType, Payload: raw})
	if err != nil {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}
