// Package websocket serves live decoding over a WebSocket.
//
// Clients open a connection to:
//
//	GET /ws
//
// Each connection is its own decoder session: a self-destructing message
// decoded on one socket is gone for that socket once its countdown expires.
//
// Client → server frame:
//
//	{"type":"decode","id":"c1","text":"...","password":"...","customKey":"...","useCustomKey":false,"method":"caesar","shift":3}
//
// Server → client frames:
//
//	{"type":"result","id":"c1","result":{...},"destructAfterMs":3000}
//	{"type":"error","id":"c1","error":"...","kind":"wrong_secret","required":"password"}
//	{"type":"destructed","messageId":"msg_01..."}
//
// The id is echoed verbatim so clients can match replies to requests.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/snehjoshi/encodex/internal/codec"
	"github.com/snehjoshi/encodex/internal/metrics"
	"github.com/snehjoshi/encodex/internal/scheduler"
	"github.com/snehjoshi/encodex/internal/session"
)

// Frame types.
const (
	TypeDecode     = "decode"
	TypeResult     = "result"
	TypeError      = "error"
	TypeDestructed = "destructed"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
	// maxFrameBytes bounds one client frame.
	maxFrameBytes = 64 << 10
)

var upgrader = gorillaws.Upgrader{
	// Same-origin only. Requests without an Origin header (native clients,
	// curl) are allowed.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		host, err := parseHost(origin)
		if err != nil {
			return false
		}
		return host == r.Host
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// parseHost returns the host:port (or just host) portion of a URL string.
func parseHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q", rawURL)
	}
	return u.Host, nil
}

// ClientFrame is what clients send.
type ClientFrame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	codec.DecodeRequest
}

// ServerFrame is what the server sends. Only the fields relevant to Type are
// set.
type ServerFrame struct {
	Type            string              `json:"type"`
	ID              string              `json:"id,omitempty"`
	Result          *codec.DecodeResult `json:"result,omitempty"`
	DestructAfterMs int64               `json:"destructAfterMs,omitempty"`
	Error           string              `json:"error,omitempty"`
	Kind            codec.ErrorKind     `json:"kind,omitempty"`
	Required        codec.Input         `json:"required,omitempty"`
	MessageID       string              `json:"messageId,omitempty"`
}

// conn is one live socket. Only the writer goroutine touches ws for writes.
type conn struct {
	sess *session.Session
	send chan []byte
	// gone is closed when the writer exits.
	gone chan struct{}
}

// Handler serves the WebSocket endpoint. Create it with NewHandler and pass
// its Fire method to the scheduler's Start.
type Handler struct {
	dec   *codec.Decoder
	sched *scheduler.Scheduler
	reg   *metrics.Registry

	mu    sync.Mutex
	conns map[string]*conn // session id → connection
}

// NewHandler wires a Handler. reg may be nil.
func NewHandler(dec *codec.Decoder, sched *scheduler.Scheduler, reg *metrics.Registry) *Handler {
	return &Handler{dec: dec, sched: sched, reg: reg, conns: make(map[string]*conn)}
}

// Conns returns the number of open connections.
func (h *Handler) Conns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Fire tells the session's socket that messageID has self-destructed. It is
// a scheduler.FireFunc and never blocks: a client that is not reading loses
// the frame.
func (h *Handler) Fire(sessionID, messageID string) {
	h.mu.Lock()
	c, ok := h.conns[sessionID]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.reg.ObserveDestructed()
	data, _ := json.Marshal(ServerFrame{Type: TypeDestructed, MessageID: messageID})
	select {
	case c.send <- data:
	default:
		slog.Warn("ws send buffer full, dropping frame", "session", sessionID, "type", TypeDestructed)
	}
}

// ServeHTTP upgrades the connection and runs the read loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	ws.SetReadLimit(maxFrameBytes)

	c := &conn{sess: session.New(), send: make(chan []byte, sendBuffer), gone: make(chan struct{})}
	h.mu.Lock()
	h.conns[c.sess.ID] = c
	h.mu.Unlock()

	done := make(chan struct{})
	go h.writeLoop(ws, c, done)

	defer func() {
		h.mu.Lock()
		delete(h.conns, c.sess.ID)
		h.mu.Unlock()
		if n := h.sched.CancelSession(c.sess.ID); n > 0 {
			slog.Debug("ws closed with pending countdowns", "session", c.sess.ID, "cancelled", n)
		}
		close(done)
		ws.Close()
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var cf ClientFrame
		if err := json.Unmarshal(raw, &cf); err != nil {
			h.queue(c, ServerFrame{Type: TypeError, Error: "invalid json: " + err.Error(), Kind: codec.KindBadRequest})
			continue
		}
		if cf.Type != TypeDecode {
			h.queue(c, ServerFrame{Type: TypeError, ID: cf.ID, Error: fmt.Sprintf("unknown frame type %q", cf.Type), Kind: codec.KindBadRequest})
			continue
		}
		h.queue(c, h.decode(r, c, cf))
	}
}

func (h *Handler) decode(r *http.Request, c *conn, cf ClientFrame) ServerFrame {
	res, err := h.dec.Decode(r.Context(), cf.DecodeRequest, c.sess)
	if err != nil {
		kind := codec.Kind(err)
		h.reg.ObserveDecodeFailure(string(kind))
		if kind == codec.KindInternal {
			slog.Error("ws decode failed", "session", c.sess.ID, "err", err)
		}
		return ServerFrame{Type: TypeError, ID: cf.ID, Error: err.Error(), Kind: kind, Required: codec.Required(err)}
	}
	h.reg.ObserveDecode(string(res.Method), res.Recovered, res.SelfDestruct)

	out := ServerFrame{Type: TypeResult, ID: cf.ID, Result: &res}
	if res.SelfDestruct {
		out.DestructAfterMs = res.DestructAfter.Milliseconds()
		h.sched.Schedule(c.sess.ID, res.MessageID, time.Now().Add(res.DestructAfter))
	}
	return out
}

// queue hands a frame to the writer. It blocks when the buffer is full so a
// slow reader throttles its own requests.
func (h *Handler) queue(c *conn, f ServerFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("ws marshal frame", "err", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.gone:
	}
}

func (h *Handler) writeLoop(ws *gorillaws.Conn, c *conn, done <-chan struct{}) {
	defer close(c.gone)
	for {
		select {
		case <-done:
			return
		case data := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillaws.TextMessage, data); err != nil {
				slog.Debug("ws write failed", "session", c.sess.ID, "err", err)
				// Unblock the reader; its next ReadMessage fails and cleans up.
				ws.Close()
				return
			}
		}
	}
}
