package signal

import (
	"encoding/json"
)

// Kind discriminates the signaling envelope. The relay routes on it and
// never interprets the payloads it carries.
type Kind string

const (
	KindJoin              Kind = "join"
	KindJoined            Kind = "joined"
	KindParticipantJoined Kind = "participant-joined"
	KindOffer             Kind = "offer"
	KindAnswer            Kind = "answer"
	KindICECandidate      Kind = "ice-candidate"
	KindLeave             Kind = "leave"
	KindParticipantLeft   Kind = "participant-left"
	KindPing              Kind = "ping"
	KindPong              Kind = "pong"
	KindError             Kind = "error"
)

const (
	CodeInvalidJoin         = "INVALID_JOIN"
	CodeRoomFull            = "ROOM_FULL"
	CodeRoomNotFound        = "ROOM_NOT_FOUND"
	CodeInvalidOffer        = "INVALID_OFFER"
	CodeInvalidAnswer       = "INVALID_ANSWER"
	CodeInvalidICECandidate = "INVALID_ICE_CANDIDATE"
	CodeProcessingError     = "PROCESSING_ERROR"
)

// Message is the wire envelope for one signaling frame. Only the fields
// relevant to a given Kind are populated; SDP and Candidate stay raw so the
// relayed payload is byte-identical to what the sender produced.
type Message struct {
	Kind        Kind            `json:"type"`
	RoomID      string          `json:"roomId,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	Role        string          `json:"role,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	SDP         json.RawMessage `json:"sdp,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
	FromUserID  string          `json:"fromUserId,omitempty"`
	Code        string          `json:"code,omitempty"`
	Detail      string          `json:"message,omitempty"`
}

// DecodeMessage parses one inbound text frame into an envelope.
func DecodeMessage(frame []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func errorMessage(code, detail string) *Message {
	return &Message{
		Kind:   KindError,
		Code:   code,
		Detail: detail,
	}
}

// hasPayload reports whether a raw JSON field was present and not an
// explicit null. A null sdp/candidate is undeliverable and treated the same
// as a missing one.
func hasPayload(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
