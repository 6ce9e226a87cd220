package chat

// Role identifies which side of a conversation a user is on.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Valid reports whether the role is one of the two known sides.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Participant is one side of a two-party conversation.
type Participant struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// Contact is a user the local user may start a conversation with.
type Contact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Conversation is a two-party thread as the inbox endpoint returns it.
// LastMessage is a denormalized projection and may be absent on a fresh
// conversation. UnreadCount is the server's view at fetch time; afterwards
// the inbox aggregator owns it.
type Conversation struct {
	ID          string      `json:"id"`
	Doctor      Participant `json:"doctor"`
	Patient     Participant `json:"patient"`
	LastMessage *Message    `json:"last_message,omitempty"`
	UnreadCount int         `json:"unread_count"`
}

// Peer returns the participant that is not the given user.
func (c Conversation) Peer(userID string) Participant {
	if c.Doctor.ID == userID {
		return c.Patient
	}
	return c.Doctor
}
