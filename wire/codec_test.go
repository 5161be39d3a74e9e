package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := Message{
		EventType: "voicechat.response.chunk",
		EventID:   "c1a2b3",
		SessionID: "sess-1",
		Payload:   []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}

	raw, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.EventType != msg.EventType || got.EventID != msg.EventID || got.SessionID != msg.SessionID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, msg)
	}
	if string(got.Payload) != string(msg.Payload) {
		t.Fatalf("payload mismatch: got %x, want %x", got.Payload, msg.Payload)
	}
}

func TestEncodeDecodeNoSessionID(t *testing.T) {
	msg := Message{EventType: "connection.hello", EventID: "e1", Payload: []byte("x")}
	raw, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SessionID != "" {
		t.Fatalf("SessionID = %q, want empty", got.SessionID)
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{0x05, 0x00, 'a', 'b'})
	if err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestDecodeMissingEventType(t *testing.T) {
	raw, _ := Encode(Message{EventType: "x", EventID: "e"})
	// Corrupt: zero out the event_type length prefix.
	raw[0], raw[1] = 0, 0
	_, err := Decode(raw[:len(raw)-1])
	if err != ErrEventTypeMissing && err != ErrTruncated {
		t.Fatalf("err = %v, want ErrEventTypeMissing or ErrTruncated", err)
	}
}

// TestPayloadAliasesInputBuffer proves Decode does not copy the payload:
// overwriting raw after decoding must be visible through the returned slice.
func TestPayloadAliasesInputBuffer(t *testing.T) {
	raw, err := Encode(Message{EventType: "t", EventID: "e", Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	raw[len(raw)-1] = 0xFF
	if msg.Payload[2] != 0xFF {
		t.Fatalf("expected decoded payload to alias raw buffer, got %x", msg.Payload)
	}
}

func TestIsAck(t *testing.T) {
	if !IsAck([]byte(`{"success":true}`)) {
		t.Fatalf("expected success:true to be an ack")
	}
	if IsAck([]byte(`{"success":false}`)) {
		t.Fatalf("expected success:false to not be an ack")
	}
	if IsAck([]byte(`not json`)) {
		t.Fatalf("expected malformed payload to not be an ack")
	}
}

func TestAudioChunkRoundTrip(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	payload := EncodeResponseChunk(pcm, 48000)
	audio, rate, muted, err := DecodeAudioChunk(payload)
	if err != nil {
		t.Fatalf("DecodeAudioChunk: %v", err)
	}
	if rate != 48000 || muted {
		t.Fatalf("rate=%d muted=%v, want 48000/false", rate, muted)
	}
	if string(audio) != string(pcm) {
		t.Fatalf("audio = %x, want %x", audio, pcm)
	}
}
