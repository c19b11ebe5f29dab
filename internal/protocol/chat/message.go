package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/danmuck/netchat/internal/protocol/frame"
)

// BinaryEchoPrefix starts every reply to a non-JSON request.
const BinaryEchoPrefix = "First 10 bytes of request: "

const binaryEchoLen = 10

// Request is the text/json client payload.
type Request struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

// Kind returns the parsed action variant.
func (r Request) Kind() Action {
	return ParseAction(r.Action)
}

// Response is the text/json server payload.
type Response struct {
	Result string `json:"result"`
}

// EncodeRequest builds one request frame. Known actions are sent as text/json;
// anything else is sent as binary action+value bytes.
func EncodeRequest(action, value string) ([]byte, error) {
	if !ParseAction(action).IsJSON() {
		return frame.Encode([]byte(action+value), frame.ContentTypeClientBinary, frame.EncodingBinary)
	}
	payload, err := frame.MarshalJSON(Request{Action: action, Value: value})
	if err != nil {
		return nil, err
	}
	return frame.Encode(payload, frame.ContentTypeJSON, frame.EncodingUTF8)
}

// DecodeRequest parses a text/json request frame.
func DecodeRequest(f frame.Frame) (Request, error) {
	if err := decodableJSON(f); err != nil {
		return Request{}, err
	}
	var req Request
	if err := json.Unmarshal(f.Payload, &req); err != nil {
		return Request{}, fmt.Errorf("%w: request: %v", frame.ErrDecode, err)
	}
	return req, nil
}

// EncodeResponse builds one text/json response frame carrying result.
func EncodeResponse(result string) ([]byte, error) {
	payload, err := frame.MarshalJSON(Response{Result: result})
	if err != nil {
		return nil, err
	}
	return frame.Encode(payload, frame.ContentTypeJSON, frame.EncodingUTF8)
}

// EncodeBinaryResponse answers an opaque request with the first bytes it carried.
func EncodeBinaryResponse(request []byte) ([]byte, error) {
	n := min(len(request), binaryEchoLen)
	payload := make([]byte, 0, len(BinaryEchoPrefix)+n)
	payload = append(payload, BinaryEchoPrefix...)
	payload = append(payload, request[:n]...)
	return frame.Encode(payload, frame.ContentTypeServerBinary, frame.EncodingBinary)
}

// DecodeResponse parses a text/json response frame. ok is false when the
// object carries no "result" key.
func DecodeResponse(f frame.Frame) (result string, ok bool, err error) {
	if err := decodableJSON(f); err != nil {
		return "", false, err
	}
	var raw struct {
		Result *string `json:"result"`
	}
	if err := json.Unmarshal(f.Payload, &raw); err != nil {
		return "", false, fmt.Errorf("%w: response: %v", frame.ErrDecode, err)
	}
	if raw.Result == nil {
		return "", false, nil
	}
	return *raw.Result, true, nil
}

func decodableJSON(f frame.Frame) error {
	if !f.IsJSON() {
		return fmt.Errorf("%w: content type %q is not %s", frame.ErrDecode, f.Header.ContentType, frame.ContentTypeJSON)
	}
	switch strings.ToLower(strings.TrimSpace(f.Header.ContentEncoding)) {
	case "utf-8", "utf8":
	default:
		return fmt.Errorf("%w: unsupported content encoding %q", frame.ErrDecode, f.Header.ContentEncoding)
	}
	if !utf8.Valid(f.Payload) {
		return fmt.Errorf("%w: payload is not valid utf-8", frame.ErrDecode)
	}
	return nil
}
