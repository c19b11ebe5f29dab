package server

import (
	"html"

	"github.com/danmuck/netchat/internal/protocol/chat"
	"github.com/danmuck/netchat/internal/protocol/frame"
)

const actionBinary = "binary"

// reply is the outcome of dispatching one request.
type reply struct {
	// action labels the request for logs and metrics.
	action string
	// encoded is the frame to broadcast; nil broadcasts nothing.
	encoded []byte
	quit    bool
}

// dispatch applies one request to the sender's state and builds the response.
func (s *Server) dispatch(c *Conn, f frame.Frame) (reply, error) {
	if !f.IsJSON() {
		encoded, err := chat.EncodeBinaryResponse(f.Payload)
		if err != nil {
			return reply{}, err
		}
		s.log.Debug().
			Str("addr", c.addr.String()).
			Str("content_type", f.Header.ContentType).
			Int("bytes", len(f.Payload)).
			Msg("binary request")
		return reply{action: actionBinary, encoded: encoded}, nil
	}

	req, err := chat.DecodeRequest(f)
	if err != nil {
		return reply{}, err
	}
	kind := req.Kind()
	out := reply{action: kind.String()}

	var result string
	switch kind {
	case chat.ActionOnConnection:
		s.log.Info().Str("addr", c.addr.String()).Str("host", req.Value).Msg("peer connected")
		return out, nil
	case chat.ActionFirstEntry:
		c.name = html.EscapeString(req.Value)
		c.color = ColorFor(s.registry.Len() - 1)
		result = c.name + " has entered the chat..."
	case chat.ActionChangeName:
		c.name = html.EscapeString(req.Value)
		result = "Name successfully changed to " + c.name
	case chat.ActionSendMessage:
		result = FormatChatLine(c.color, c.name, req.Value)
	case chat.ActionQuit:
		out.quit = true
		return out, nil
	default:
		result = InvalidActionResult(req.Action)
	}

	out.encoded, err = chat.EncodeResponse(result)
	if err != nil {
		return reply{}, err
	}
	return out, nil
}

// FormatChatLine renders a chat message in the sender's color. name is
// expected to be escaped already; message is escaped here.
func FormatChatLine(color, name, message string) string {
	return "<font color=" + color + "><b>&lt;" + name + "&gt;</b> " + html.EscapeString(message) + "</font>"
}

// InvalidActionResult is the reply text for an unrecognized action.
func InvalidActionResult(action string) string {
	return `Error: invalid action "` + html.EscapeString(action) + `".`
}
