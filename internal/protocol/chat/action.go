package chat

// Action is the decoded form of a request's "action" field.
type Action int

const (
	ActionUnknown Action = iota
	ActionOnConnection
	ActionFirstEntry
	ActionChangeName
	ActionSendMessage
	ActionQuit
)

const (
	wireOnConnection = "on_connection"
	wireFirstEntry   = "first_entry"
	wireChangeName   = "change_name"
	wireSendMessage  = "send_message"
	wireQuit         = "quit"
)

// ParseAction maps a wire action string to its variant. Unrecognized strings
// map to ActionUnknown; the caller keeps the raw string for error replies.
func ParseAction(s string) Action {
	switch s {
	case wireOnConnection:
		return ActionOnConnection
	case wireFirstEntry:
		return ActionFirstEntry
	case wireChangeName:
		return ActionChangeName
	case wireSendMessage:
		return ActionSendMessage
	case wireQuit:
		return ActionQuit
	default:
		return ActionUnknown
	}
}

func (a Action) String() string {
	switch a {
	case ActionOnConnection:
		return wireOnConnection
	case ActionFirstEntry:
		return wireFirstEntry
	case ActionChangeName:
		return wireChangeName
	case ActionSendMessage:
		return wireSendMessage
	case ActionQuit:
		return wireQuit
	default:
		return "unknown"
	}
}

// IsJSON reports whether the client encodes the action as a text/json request.
// Anything else travels as an opaque binary request.
func (a Action) IsJSON() bool {
	return a != ActionUnknown
}
