package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/snehjoshi/encodex/internal/codec"
	"github.com/snehjoshi/encodex/internal/detect"
	"github.com/snehjoshi/encodex/internal/envelope"
	"github.com/snehjoshi/encodex/internal/metrics"
	"github.com/snehjoshi/encodex/internal/session"
	"github.com/snehjoshi/encodex/internal/share"
	"github.com/snehjoshi/encodex/internal/transform"
)

// Version is reported by /health.
const Version = "1.0.0"

// QR size bounds accepted in the size query parameter.
const (
	minQRSize = 64
	maxQRSize = 2048
)

// Handler groups all HTTP request handlers.
type Handler struct {
	enc      *codec.Encoder
	dec      *codec.Decoder
	sessions *session.Store
	reg      *metrics.Registry
	qrSize   int
	ledger   string
}

// ─── DTOs ─────────────────────────────────────────────────────────────────────

type errorResp struct {
	Error    string          `json:"error"`
	Kind     codec.ErrorKind `json:"kind,omitempty"`
	Required codec.Input     `json:"required,omitempty"`
}

type healthResp struct {
	Status   string `json:"status"`
	Ledger   string `json:"ledger"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
	UptimeMs int64  `json:"uptime_ms"`
	Version  string `json:"version"`
}

type methodInfo struct {
	Method      transform.Method `json:"method"`
	Description string           `json:"description"`
	TakesShift  bool             `json:"takesShift,omitempty"`
}

type methodsResp struct {
	Methods      []methodInfo `json:"methods"`
	DefaultShift int          `json:"defaultShift"`
}

type decodeResp struct {
	codec.DecodeResult
	DestructAfterMs int64 `json:"destructAfterMs,omitempty"`
}

type detectReq struct {
	Text string `json:"text"`
}

type detectResp struct {
	Method         transform.Method   `json:"method"`
	Reason         detect.Reason      `json:"reason"`
	PasswordLikely bool               `json:"passwordLikely"`
	Metadata       *envelope.Metadata `json:"metadata,omitempty"`
	Candidates     []detect.Scored    `json:"candidates"`
}

// ─── Health ───────────────────────────────────────────────────────────────────

var startTime = time.Now()

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	elapsed := time.Since(startTime)
	writeJSON(w, http.StatusOK, healthResp{
		Status:   "ok",
		Ledger:   h.ledger,
		Sessions: h.sessions.Len(),
		Uptime:   elapsed.Round(time.Second).String(),
		UptimeMs: elapsed.Milliseconds(),
		Version:  Version,
	})
}

func (h *Handler) methods(w http.ResponseWriter, r *http.Request) {
	var out []methodInfo
	for _, t := range transform.List() {
		out = append(out, methodInfo{
			Method:      t.Method(),
			Description: t.Description(),
			TakesShift:  t.Method() == transform.MethodCaesar,
		})
	}
	writeJSON(w, http.StatusOK, methodsResp{Methods: out, DefaultShift: transform.DefaultShift})
}

// ─── Encode / decode ─────────────────────────────────────────────────────────

func (h *Handler) encode(w http.ResponseWriter, r *http.Request) {
	var req codec.EncodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.enc.Encode(r.Context(), req)
	if err != nil {
		writeCodecError(w, err)
		return
	}
	h.reg.ObserveEncode(string(res.Metadata.Type), res.Metadata.SelfDestruct)
	writeJSON(w, http.StatusOK, res)
}

// decode resolves the viewer session from X-Session-Id and echoes the id
// back, minting a new one when the header is absent or malformed.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r.Header.Get(SessionHeader))
	w.Header().Set(SessionHeader, sess.ID)

	var req codec.DecodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.dec.Decode(r.Context(), req, sess)
	if err != nil {
		h.reg.ObserveDecodeFailure(string(codec.Kind(err)))
		writeCodecError(w, err)
		return
	}
	h.reg.ObserveDecode(string(res.Method), res.Recovered, res.SelfDestruct)

	out := decodeResp{DecodeResult: res}
	if res.SelfDestruct {
		out.DestructAfterMs = res.DestructAfter.Milliseconds()
	}
	writeJSON(w, http.StatusOK, out)
}

// ─── Detect ──────────────────────────────────────────────────────────────────

func (h *Handler) detect(w http.ResponseWriter, r *http.Request) {
	var req detectReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeCodecError(w, codec.ErrEmptyText)
		return
	}
	text := envelope.StripQRPrefix(req.Text)
	method, reason := detect.Method(text)
	payload, md := envelope.Unwrap(text)

	resp := detectResp{
		Method:     method,
		Reason:     reason,
		Metadata:   md,
		Candidates: detect.Rank(payload),
	}
	if md != nil {
		resp.PasswordLikely = md.PasswordProtected
	} else {
		resp.PasswordLikely = detect.IsLikelyPasswordProtected(payload)
	}
	if resp.Candidates == nil {
		resp.Candidates = []detect.Scored{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── QR ──────────────────────────────────────────────────────────────────────

func (h *Handler) qr(w http.ResponseWriter, r *http.Request) {
	env := r.URL.Query().Get("data")
	if env == "" {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "data query parameter is required", Kind: codec.KindBadRequest})
		return
	}
	size := h.qrSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < minQRSize || n > maxQRSize {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: "size must be an integer between 64 and 2048", Kind: codec.KindBadRequest})
			return
		}
		size = n
	}
	png, err := share.QRCode(envelope.StripQRPrefix(env), size)
	if err != nil {
		// Payloads past QR capacity are the only realistic failure.
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error(), Kind: codec.KindBadRequest})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// statusFor maps error kinds to HTTP status codes.
func statusFor(kind codec.ErrorKind) int {
	switch kind {
	case codec.KindBadRequest:
		return http.StatusBadRequest
	case codec.KindInputRequired, codec.KindUndecodable:
		return http.StatusUnprocessableEntity
	case codec.KindWrongSecret:
		return http.StatusForbidden
	case codec.KindAlreadyDestructed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeCodecError(w http.ResponseWriter, err error) {
	kind := codec.Kind(err)
	msg := err.Error()
	if kind == codec.KindInternal {
		slog.Error("request failed", "err", err)
		msg = "internal error"
	}
	writeJSON(w, statusFor(kind), errorResp{Error: msg, Kind: kind, Required: codec.Required(err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp{Error: "request body too large", Kind: codec.KindBadRequest})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json: " + err.Error(), Kind: codec.KindBadRequest})
		return false
	}
	return true
}
