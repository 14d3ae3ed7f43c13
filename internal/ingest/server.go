// Package ingest accepts conversation turns from the interview gateway over
// WebSocket and appends them to the transcript store.
//
// The gateway opens one connection per interview session
// (`/ingest?session_id=...`) and pushes a JSON frame per exchange as it
// happens. A final "end" frame seals the session so no further turns can be
// appended. Malformed frames are skipped and counted, never fatal to the
// connection: one bad producer message must not lose the rest of a session.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/mockmentor/mockmentor/internal/observe"
	"github.com/mockmentor/mockmentor/internal/transcript"
	"github.com/mockmentor/mockmentor/pkg/types"
)

// Frame is one JSON message on the ingest connection.
//
// Type is "turn" for a conversation turn or "end" to seal the session. Turn
// fields are ignored on "end" frames.
type Frame struct {
	Type      string    `json:"type"`
	Kind      string    `json:"kind,omitempty"`
	Speaker   string    `json:"speaker,omitempty"`
	Text      string    `json:"text,omitempty"`
	Seq       int       `json:"seq,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Ack is sent back after every frame so the gateway can detect dropped turns.
type Ack struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// Handler is the WebSocket ingest endpoint.
type Handler struct {
	store   transcript.Store
	metrics *observe.Metrics
	logger  *slog.Logger

	// readLimit bounds a single frame's size. Turn texts are transcribed
	// speech; anything past this is a broken producer.
	readLimit int64
}

// NewHandler returns an ingest endpoint appending to store. metrics may be
// nil.
func NewHandler(store transcript.Store, metrics *observe.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:     store,
		metrics:   metrics,
		logger:    logger.With("component", "ingest"),
		readLimit: 64 * 1024,
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and consumes turn
// frames until the session ends or the producer disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "ingest closed")

	conn.SetReadLimit(h.readLimit)
	h.logger.Info("ingest connection opened", "session_id", sessionID)

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				h.logger.Info("ingest connection closed by producer", "session_id", sessionID)
			} else if ctx.Err() == nil {
				h.logger.Warn("ingest read failed", "session_id", sessionID, "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.reject(ctx, conn, sessionID, "malformed frame: "+err.Error())
			continue
		}

		switch frame.Type {
		case "turn":
			h.handleTurn(ctx, conn, sessionID, frame)
		case "end":
			h.handleEnd(ctx, conn, sessionID)
			conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		default:
			h.reject(ctx, conn, sessionID, "unknown frame type "+frame.Type)
		}
	}
}

func (h *Handler) handleTurn(ctx context.Context, conn *websocket.Conn, sessionID string, frame Frame) {
	turn := types.ConversationTurn{
		Kind:           types.TurnKind(frame.Kind),
		Speaker:        types.Speaker(frame.Speaker),
		Text:           frame.Text,
		SequenceNumber: frame.Seq,
		Timestamp:      frame.Timestamp,
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	if !turn.Kind.IsValid() {
		h.reject(ctx, conn, sessionID, "unknown turn kind "+frame.Kind)
		return
	}
	if !turn.Speaker.IsValid() {
		h.reject(ctx, conn, sessionID, "unknown speaker "+frame.Speaker)
		return
	}
	if turn.SequenceNumber < 0 {
		h.reject(ctx, conn, sessionID, "negative sequence number")
		return
	}

	if err := h.store.Append(ctx, sessionID, turn); err != nil {
		if errors.Is(err, transcript.ErrSessionEnded) {
			h.reject(ctx, conn, sessionID, "session has ended")
			return
		}
		h.logger.Error("append turn failed", "session_id", sessionID, "error", err)
		h.writeAck(ctx, conn, Ack{Error: "store unavailable"})
		return
	}

	if h.metrics != nil {
		h.metrics.TurnsIngested.Add(ctx, 1)
	}
	h.writeAck(ctx, conn, Ack{Accepted: true})
}

func (h *Handler) handleEnd(ctx context.Context, conn *websocket.Conn, sessionID string) {
	err := h.store.End(ctx, sessionID)
	if err != nil && !errors.Is(err, transcript.ErrNoSession) {
		h.logger.Error("end session failed", "session_id", sessionID, "error", err)
		h.writeAck(ctx, conn, Ack{Error: "store unavailable"})
		return
	}
	h.logger.Info("session ended", "session_id", sessionID)
	h.writeAck(ctx, conn, Ack{Accepted: true})
}

// reject skips one bad frame: counted, acked with the reason, connection kept.
func (h *Handler) reject(ctx context.Context, conn *websocket.Conn, sessionID, reason string) {
	if h.metrics != nil {
		h.metrics.SkippedTurns.Add(ctx, 1)
	}
	h.logger.Warn("frame rejected", "session_id", sessionID, "reason", reason)
	h.writeAck(ctx, conn, Ack{Error: reason})
}

func (h *Handler) writeAck(ctx context.Context, conn *websocket.Conn, ack Ack) {
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("ack write failed", "error", err)
	}
}
