package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/danmuck/netchat/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)

	payloads := [][]byte{
		nil,
		[]byte(`{"action":"send_message","value":"hi"}`),
		{0x00, 0xff, 0x10, 0x7f},
		bytes.Repeat([]byte("x"), 70000),
	}
	for _, payload := range payloads {
		wire, err := Encode(payload, ContentTypeClientBinary, EncodingBinary)
		require.NoError(t, err)

		f, consumed, ok, err := NewDecoder(Limits{}).Next(wire)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, len(wire), consumed)
		require.Equal(t, ContentTypeClientBinary, f.Header.ContentType)
		require.Equal(t, EncodingBinary, f.Header.ContentEncoding)
		require.Equal(t, NativeByteOrder(), f.Header.ByteOrder)
		require.Equal(t, len(payload), len(f.Payload))
		require.True(t, bytes.Equal(payload, f.Payload))
		require.NoError(t, f.Validate())
	}
}

func TestEncodeUsesBigEndianPrefixAndWireKeys(t *testing.T) {
	testlog.Start(t)

	wire, err := Encode([]byte("abc"), ContentTypeJSON, EncodingUTF8)
	require.NoError(t, err)

	hl := binary.BigEndian.Uint16(wire[:PrefixLen])
	header := string(wire[PrefixLen : PrefixLen+int(hl)])
	require.Contains(t, header, `"byteorder":`)
	require.Contains(t, header, `"content-type":"text/json"`)
	require.Contains(t, header, `"content-encoding":"utf-8"`)
	require.Contains(t, header, `"content-length":3`)
	require.Equal(t, "abc", string(wire[PrefixLen+int(hl):]))
}

func TestDecoderEverySplitPoint(t *testing.T) {
	testlog.Start(t)

	payload := []byte(`{"result":"<font color=#D98C8C><b>&lt;Ada&gt;</b> hi</font>"}`)
	wire, err := Encode(payload, ContentTypeJSON, EncodingUTF8)
	require.NoError(t, err)

	for split := 0; split <= len(wire); split++ {
		d := NewDecoder(DefaultLimits())
		var buf []byte

		buf = append(buf, wire[:split]...)
		f, consumed, ok, err := d.Next(buf)
		require.NoError(t, err)
		buf = buf[consumed:]
		if split == len(wire) {
			require.True(t, ok, "split=%d", split)
			require.Equal(t, payload, f.Payload)
			continue
		}
		require.False(t, ok, "split=%d", split)

		buf = append(buf, wire[split:]...)
		f, consumed, ok, err = d.Next(buf)
		require.NoError(t, err)
		require.True(t, ok, "split=%d", split)
		require.Equal(t, len(buf), consumed, "split=%d", split)
		require.Equal(t, payload, f.Payload)
		require.Equal(t, ContentTypeJSON, f.Header.ContentType)
		require.Equal(t, StageHeaderLength, d.Stage())
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	testlog.Start(t)

	first, err := Encode([]byte("one"), ContentTypeJSON, EncodingUTF8)
	require.NoError(t, err)
	second, err := Encode([]byte("two!"), ContentTypeJSON, EncodingUTF8)
	require.NoError(t, err)
	wire := append(append([]byte{}, first...), second...)

	d := NewDecoder(DefaultLimits())
	var buf []byte
	var got []string
	for _, b := range wire {
		buf = append(buf, b)
		for {
			f, consumed, ok, err := d.Next(buf)
			require.NoError(t, err)
			buf = buf[consumed:]
			if !ok {
				break
			}
			got = append(got, string(f.Payload))
		}
	}
	require.Equal(t, []string{"one", "two!"}, got)
	require.Empty(t, buf)
}

func TestTryDecodeHeaderMissingField(t *testing.T) {
	testlog.Start(t)

	raw := []byte(`{"byteorder":"little","content-type":"text/json","content-length":2}`)
	_, consumed, ok, err := TryDecodeHeader(raw, uint16(len(raw)))
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
	if ok || consumed != len(raw) {
		t.Fatalf("unexpected ok=%v consumed=%d", ok, consumed)
	}
}

func TestTryDecodeHeaderRejectsBadRequiredFields(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"all null":           `{"byteorder":null,"content-type":null,"content-encoding":null,"content-length":null}`,
		"null length":        `{"byteorder":"little","content-type":"text/json","content-encoding":"utf-8","content-length":null}`,
		"null type":          `{"byteorder":"little","content-type":null,"content-encoding":"utf-8","content-length":2}`,
		"string length":      `{"byteorder":"little","content-type":"text/json","content-encoding":"utf-8","content-length":"2"}`,
		"negative length":    `{"byteorder":"little","content-type":"text/json","content-encoding":"utf-8","content-length":-1}`,
		"numeric byteorder":  `{"byteorder":1,"content-type":"text/json","content-encoding":"utf-8","content-length":2}`,
		"array content type": `{"byteorder":"little","content-type":["text/json"],"content-encoding":"utf-8","content-length":2}`,
	}
	for name, body := range cases {
		raw := []byte(body)
		h, consumed, ok, err := TryDecodeHeader(raw, uint16(len(raw)))
		if !errors.Is(err, ErrMalformedHeader) {
			t.Fatalf("%s: expected ErrMalformedHeader, got header=%+v err=%v", name, h, err)
		}
		if ok || consumed != len(raw) {
			t.Fatalf("%s: unexpected ok=%v consumed=%d", name, ok, consumed)
		}
	}
}

func TestDecoderRejectsNullHeader(t *testing.T) {
	testlog.Start(t)

	header := []byte(`{"byteorder":null,"content-type":null,"content-encoding":null,"content-length":null}`)
	buf := append([]byte{0, byte(len(header))}, header...)
	buf = append(buf, "hello"...)

	_, consumed, ok, err := NewDecoder(DefaultLimits()).Next(buf)
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
	if ok || consumed != PrefixLen+len(header) {
		t.Fatalf("unexpected ok=%v consumed=%d", ok, consumed)
	}
}

func TestTryDecodeHeaderWaitsForBytes(t *testing.T) {
	testlog.Start(t)

	raw := []byte(`{"byteorder":"little"}`)
	_, consumed, ok, err := TryDecodeHeader(raw[:5], uint16(len(raw)))
	if err != nil || ok || consumed != 0 {
		t.Fatalf("expected incomplete header, got ok=%v consumed=%d err=%v", ok, consumed, err)
	}
	if _, _, ok := TryDecodeHeaderLength([]byte{0x01}); ok {
		t.Fatalf("expected one byte prefix to be incomplete")
	}
}

func TestTryDecodeHeaderRejectsGarbage(t *testing.T) {
	testlog.Start(t)

	raw := []byte(`not json at all`)
	_, _, _, err := TryDecodeHeader(raw, uint16(len(raw)))
	require.ErrorIs(t, err, ErrMalformedHeader)

	neg := []byte(`{"byteorder":"little","content-type":"text/json","content-encoding":"utf-8","content-length":-1}`)
	_, _, _, err = TryDecodeHeader(neg, uint16(len(neg)))
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestDecoderPayloadLimit(t *testing.T) {
	testlog.Start(t)

	wire, err := Encode(bytes.Repeat([]byte("a"), 64), ContentTypeJSON, EncodingUTF8)
	require.NoError(t, err)

	_, _, ok, err := NewDecoder(Limits{MaxPayloadBytes: 16}).Next(wire)
	require.False(t, ok)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestValidateLengthMismatch(t *testing.T) {
	testlog.Start(t)

	f := Frame{Header: Header{ContentLength: 4}, Payload: []byte("abc")}
	if err := f.Validate(); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}
