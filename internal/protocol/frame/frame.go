package frame

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// PrefixLen is the size of the big-endian header length prefix.
const PrefixLen = 2

const (
	ContentTypeJSON         = "text/json"
	ContentTypeClientBinary = "binary/custom-client-binary-type"
	ContentTypeServerBinary = "binary/custom-server-binary-type"

	EncodingUTF8   = "utf-8"
	EncodingBinary = "binary"
)

// Header wire keys.
const (
	keyByteOrder       = "byteorder"
	keyContentType     = "content-type"
	keyContentEncoding = "content-encoding"
	keyContentLength   = "content-length"
)

var (
	ErrMalformedHeader = errors.New("frame: malformed header")
	ErrDecode          = errors.New("frame: decode error")
	ErrHeaderTooLarge  = errors.New("frame: header too large")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrLengthMismatch  = errors.New("frame: content length does not match payload")
)

var requiredHeaderFields = []string{keyByteOrder, keyContentLength, keyContentType, keyContentEncoding}

// Header is the JSON header carried between the length prefix and the payload.
type Header struct {
	ByteOrder       string `json:"byteorder"`
	ContentType     string `json:"content-type"`
	ContentEncoding string `json:"content-encoding"`
	ContentLength   uint32 `json:"content-length"`
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains decode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 1 << 20}
}

// NativeByteOrder reports the host byte order as "little" or "big".
func NativeByteOrder() string {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	if b[0] == 1 {
		return "little"
	}
	return "big"
}

// Encode serializes payload into prefix + JSON header + payload.
func Encode(payload []byte, contentType, contentEncoding string) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, ErrPayloadTooLarge
	}
	h := Header{
		ByteOrder:       NativeByteOrder(),
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
		ContentLength:   uint32(len(payload)),
	}
	hb, err := MarshalJSON(h)
	if err != nil {
		return nil, err
	}
	if len(hb) > math.MaxUint16 {
		return nil, ErrHeaderTooLarge
	}
	out := make([]byte, PrefixLen, PrefixLen+len(hb)+len(payload))
	binary.BigEndian.PutUint16(out, uint16(len(hb)))
	out = append(out, hb...)
	out = append(out, payload...)
	return out, nil
}

// TryDecodeHeaderLength reads the prefix once at least PrefixLen bytes are buffered.
func TryDecodeHeaderLength(buf []byte) (uint16, int, bool) {
	if len(buf) < PrefixLen {
		return 0, 0, false
	}
	return binary.BigEndian.Uint16(buf[:PrefixLen]), PrefixLen, true
}

// TryDecodeHeader parses the JSON header once headerLen bytes are buffered.
// A missing, null or wrongly typed required field fails with
// ErrMalformedHeader; consumed still covers the header bytes.
func TryDecodeHeader(buf []byte, headerLen uint16) (Header, int, bool, error) {
	n := int(headerLen)
	if len(buf) < n {
		return Header{}, 0, false, nil
	}
	raw := buf[:n]
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Header{}, n, false, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	for _, key := range requiredHeaderFields {
		v, ok := fields[key]
		if !ok {
			return Header{}, n, false, fmt.Errorf("%w: missing required header %q", ErrMalformedHeader, key)
		}
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return Header{}, n, false, fmt.Errorf("%w: null required header %q", ErrMalformedHeader, key)
		}
	}
	var h Header
	if err := json.Unmarshal(raw, &h); err != nil {
		return Header{}, n, false, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return h, n, true, nil
}

// TryDecodePayload returns the payload once h.ContentLength bytes are buffered.
// The returned slice is a copy.
func TryDecodePayload(buf []byte, h Header) ([]byte, int, bool) {
	n := int(h.ContentLength)
	if len(buf) < n {
		return nil, 0, false
	}
	payload := make([]byte, n)
	copy(payload, buf[:n])
	return payload, n, true
}

// MarshalJSON encodes v without HTML escaping and without a trailing newline.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// Validate checks the frame's length invariant.
func (f Frame) Validate() error {
	if int(f.Header.ContentLength) != len(f.Payload) {
		return fmt.Errorf("%w: header=%d payload=%d", ErrLengthMismatch, f.Header.ContentLength, len(f.Payload))
	}
	return nil
}

// IsJSON reports whether the payload is a structured text/json object.
func (f Frame) IsJSON() bool {
	return f.Header.ContentType == ContentTypeJSON
}
