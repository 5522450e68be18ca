package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Conn is the duplex message-framed connection a gateway serves. Satisfied
// by wsutils.ThreadSafeWriter.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

type connState int

const (
	stateUnjoined connState = iota
	stateJoined
	stateTerminated
)

// Gateway owns one connection's relay state machine. All of its fields are
// touched only from the connection's read loop; cross-connection state lives
// in the registry and the rooms.
type Gateway struct {
	logger   *slog.Logger
	rooms    *Registry
	notifier *Notifier
	metrics  *Metrics
	conn     Conn

	connectionID string
	state        connState
	roomID       string
	userID       string
	role         string
	displayName  string
}

type NewGatewayParams struct {
	Logger   *slog.Logger
	Rooms    *Registry
	Notifier *Notifier
	Metrics  *Metrics
	Conn     Conn
}

func NewGateway(params NewGatewayParams) *Gateway {
	return &Gateway{
		logger:       params.Logger,
		rooms:        params.Rooms,
		notifier:     params.Notifier,
		metrics:      params.Metrics,
		conn:         params.Conn,
		connectionID: uuid.NewString(),
	}
}

// Serve reads frames until the connection closes or a leave terminates the
// state machine. Cleanup runs synchronously on the way out, whatever the
// cause.
func (g *Gateway) Serve() {
	g.logger.Info("websocket connection established", slog.String("connection_id", g.connectionID))
	g.metrics.ConnectionOpened()
	defer g.metrics.ConnectionClosed()
	defer g.terminate()

	for g.state != stateTerminated {
		_, frame, err := g.conn.ReadMessage()
		if err != nil {
			g.logger.Info("websocket connection closed",
				slog.String("connection_id", g.connectionID),
				slog.String("reason", err.Error()))
			return
		}
		g.handleFrame(frame)
	}
}

// handleFrame decodes and dispatches one inbound frame. Any failure here,
// panics included, turns into a PROCESSING_ERROR envelope; a malformed
// message never takes the connection down.
func (g *Gateway) handleFrame(frame []byte) {
	if g.state == stateTerminated {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("error processing message",
				slog.String("connection_id", g.connectionID),
				slog.Any("panic", r))
			g.sendError(CodeProcessingError, fmt.Sprintf("failed to process message: %v", r))
		}
	}()

	msg, err := DecodeMessage(frame)
	if err != nil {
		g.logger.Error("error processing message",
			slog.String("connection_id", g.connectionID),
			slog.String("err", err.Error()))
		g.sendError(CodeProcessingError, fmt.Sprintf("failed to process message: %s", err))
		return
	}

	g.logger.Debug("received message",
		slog.String("type", string(msg.Kind)),
		slog.String("connection_id", g.connectionID))

	switch msg.Kind {
	case KindJoin:
		g.metrics.MessageReceived(msg.Kind)
		g.handleJoin(msg)
	case KindOffer:
		g.metrics.MessageReceived(msg.Kind)
		g.relayToPeer(KindOffer, msg.SDP, CodeInvalidOffer, "missing sdp in offer")
	case KindAnswer:
		g.metrics.MessageReceived(msg.Kind)
		g.relayToPeer(KindAnswer, msg.SDP, CodeInvalidAnswer, "missing sdp in answer")
	case KindICECandidate:
		g.metrics.MessageReceived(msg.Kind)
		g.relayToPeer(KindICECandidate, msg.Candidate, CodeInvalidICECandidate, "missing candidate in ice-candidate")
	case KindLeave:
		g.metrics.MessageReceived(msg.Kind)
		g.handleLeave()
	case KindPing:
		g.metrics.MessageReceived(msg.Kind)
		g.send(&Message{Kind: KindPong})
	default:
		g.logger.Warn("unsupported message type",
			slog.String("type", string(msg.Kind)),
			slog.String("connection_id", g.connectionID))
	}
}

func (g *Gateway) handleJoin(msg *Message) {
	roomID := strings.TrimSpace(msg.RoomID)
	userID := strings.TrimSpace(msg.UserID)
	if roomID == "" || userID == "" {
		g.logger.Warn("invalid join payload: missing roomId or userId",
			slog.String("connection_id", g.connectionID))
		g.sendError(CodeInvalidJoin, "roomId and userId are required")
		return
	}

	role := msg.Role
	if role == "" {
		role = RoleGuest
	}
	displayName := msg.DisplayName
	if displayName == "" {
		displayName = DefaultDisplayName
	}

	// A connection holds at most one membership. Joining a different room
	// first runs the same cleanup an explicit leave would.
	if g.state == stateJoined && g.roomID != roomID {
		g.leaveRoom()
		g.state = stateUnjoined
		g.roomID = ""
	}

	participant := NewParticipant(g.connectionID, g.conn, userID, role, displayName)

	var room *Room
	for {
		room = g.rooms.GetOrCreate(roomID)
		err := room.AddParticipant(g.connectionID, participant)
		if errors.Is(err, ErrRoomClosed) {
			// Lost the race against teardown of the previous instance.
			continue
		}
		if errors.Is(err, ErrRoomFull) {
			g.logger.Warn("room is full",
				slog.String("room_id", roomID),
				slog.String("connection_id", g.connectionID))
			g.sendError(CodeRoomFull, "room is full (maximum 2 participants)")
			return
		}
		break
	}

	g.state = stateJoined
	g.roomID = roomID
	g.userID = userID
	g.role = role
	g.displayName = displayName

	g.logger.Info("participant joined room",
		slog.String("user_id", userID),
		slog.String("display_name", displayName),
		slog.String("room_id", roomID),
		slog.Int("participants", room.Count()))

	g.send(&Message{Kind: KindJoined, RoomID: roomID, UserID: userID})

	if other, exist := room.OtherParticipant(g.connectionID); exist {
		// Symmetric introduction.
		g.deliver(other, &Message{
			Kind:        KindParticipantJoined,
			UserID:      userID,
			Role:        role,
			DisplayName: displayName,
		})
		g.send(&Message{
			Kind:        KindParticipantJoined,
			UserID:      other.UserID,
			Role:        other.Role,
			DisplayName: other.DisplayName,
		})
	}

	g.notifier.Dispatch()
}

// relayToPeer forwards an opaque payload to the other participant with the
// sender's user id attached. A missing peer is a normal negotiation race:
// dropped silently, at debug level for candidates and warn for offer/answer.
func (g *Gateway) relayToPeer(kind Kind, payload json.RawMessage, invalidCode, missingDetail string) {
	room, exist := g.currentRoom()
	if !exist {
		g.sendError(CodeRoomNotFound, fmt.Sprintf("join a room before sending %s", kind))
		return
	}

	if !hasPayload(payload) {
		g.sendError(invalidCode, missingDetail)
		return
	}

	other, exist := room.OtherParticipant(g.connectionID)
	if !exist {
		if kind == KindICECandidate {
			g.logger.Debug("no other participant to send ice-candidate to",
				slog.String("room_id", room.ID()))
		} else {
			g.logger.Warn("no other participant to relay to",
				slog.String("type", string(kind)),
				slog.String("room_id", room.ID()))
		}
		return
	}

	out := &Message{Kind: kind, FromUserID: g.userID}
	if kind == KindICECandidate {
		out.Candidate = payload
	} else {
		out.SDP = payload
	}

	g.logger.Debug("forwarding to other participant",
		slog.String("type", string(kind)),
		slog.String("from_user_id", g.userID),
		slog.String("room_id", room.ID()))
	g.deliver(other, out)
	g.metrics.Relayed(kind)
}

func (g *Gateway) handleLeave() {
	g.logger.Info("leave message received", slog.String("connection_id", g.connectionID))
	g.terminate()
	if err := g.conn.Close(); err != nil {
		g.logger.Debug("unable to close websocket connection",
			slog.String("connection_id", g.connectionID),
			slog.String("err", err.Error()))
	}
}

// terminate runs the shared cleanup for explicit leave and transport close.
// Idempotent; after it the gateway dispatches nothing further.
func (g *Gateway) terminate() {
	if g.state == stateTerminated {
		return
	}
	joined := g.state == stateJoined
	g.state = stateTerminated
	if joined {
		g.leaveRoom()
	}
}

// leaveRoom removes this connection from its room, notifies the remaining
// participant and lets the registry reap the room if it emptied.
func (g *Gateway) leaveRoom() {
	removed, remaining := g.rooms.RemoveParticipant(g.roomID, g.connectionID)
	if removed == nil {
		return
	}

	g.logger.Info("participant left room",
		slog.String("user_id", removed.UserID),
		slog.String("room_id", g.roomID))

	if remaining != nil {
		g.deliver(remaining, &Message{Kind: KindParticipantLeft, UserID: removed.UserID})
	}

	g.notifier.Dispatch()
}

func (g *Gateway) currentRoom() (*Room, bool) {
	if g.state != stateJoined {
		return nil, false
	}
	return g.rooms.Get(g.roomID)
}

// deliver writes to another participant's connection. Failures are logged
// only: the sender has no remedy and the peer's own teardown handles the
// rest.
func (g *Gateway) deliver(p *Participant, msg *Message) {
	if err := p.Send(msg); err != nil {
		g.logger.Warn("failed to deliver message",
			slog.String("type", string(msg.Kind)),
			slog.String("to_connection_id", p.ConnectionID),
			slog.String("err", err.Error()))
	}
}

func (g *Gateway) send(msg *Message) {
	if err := g.conn.WriteJSON(msg); err != nil {
		g.logger.Debug("cannot send message to connection",
			slog.String("connection_id", g.connectionID),
			slog.String("err", err.Error()))
	}
}

func (g *Gateway) sendError(code, detail string) {
	g.send(errorMessage(code, detail))
	g.metrics.ErrorSent(code)
	g.logger.Warn("sent error to connection",
		slog.String("connection_id", g.connectionID),
		slog.String("code", code),
		slog.String("detail", detail))
}
