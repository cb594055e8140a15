package permissions

// Channel capability bits. The layout leaves room for sibling
// capability groups that live outside this service.
const (
	ViewChannel     uint64 = 1 << 20
	SendMessage     uint64 = 1 << 22
	ManageMessages  uint64 = 1 << 23
	Masquerade      uint64 = 1 << 28
	React           uint64 = 1 << 29
	MentionEveryone uint64 = 1 << 37
	MentionRoles    uint64 = 1 << 38
)

// All is every capability this service knows about. Owners hold it.
const All = ViewChannel | SendMessage | ManageMessages | Masquerade | React | MentionEveryone | MentionRoles

// participant is what recipients of a DM or group hold by default.
const participant = ViewChannel | SendMessage | Masquerade | React

var names = map[uint64]string{
	ViewChannel:     "ViewChannel",
	SendMessage:     "SendMessage",
	ManageMessages:  "ManageMessages",
	Masquerade:      "Masquerade",
	React:           "React",
	MentionEveryone: "MentionEveryone",
	MentionRoles:    "MentionRoles",
}

// Name returns the wire name of a capability bit.
func Name(cap uint64) string {
	if n, ok := names[cap]; ok {
		return n
	}
	return "Unknown"
}
