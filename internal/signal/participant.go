package signal

const (
	RoleGuest          = "GUEST"
	DefaultDisplayName = "Unknown"
)

// MessageWriter is the write half of a participant's connection.
type MessageWriter interface {
	WriteJSON(v any) error
}

// Participant is one joined connection's identity record within a room.
// Immutable once constructed; owned by exactly one room entry.
type Participant struct {
	ConnectionID string
	UserID       string
	Role         string
	DisplayName  string

	conn MessageWriter
}

func NewParticipant(connectionID string, conn MessageWriter, userID, role, displayName string) *Participant {
	return &Participant{
		ConnectionID: connectionID,
		UserID:       userID,
		Role:         role,
		DisplayName:  displayName,
		conn:         conn,
	}
}

// Send writes an envelope to the participant's connection. Delivery is best
// effort; the caller decides whether a failure is worth logging.
func (p *Participant) Send(msg *Message) error {
	return p.conn.WriteJSON(msg)
}

// ParticipantInfo is the REST projection of a participant.
type ParticipantInfo struct {
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
}

func (p *Participant) Info() ParticipantInfo {
	return ParticipantInfo{
		UserID:      p.UserID,
		Role:        p.Role,
		DisplayName: p.DisplayName,
	}
}
