package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// AckEnvelope is the minimal shape every acknowledgment payload must satisfy:
// a decoded message is an ack when it carries an event_id and its payload's
// success field is true (spec §4.5). Non-ack payloads may omit Success
// entirely, which decodes to false.
type AckEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// IsAck reports whether payload (a JSON-encoded Message.Payload) represents
// a successful acknowledgment. A decode failure is treated as "not an ack"
// rather than an error, since not every payload is JSON (audio chunk
// payloads are binary — see EncodeAudioChunk).
func IsAck(payload []byte) bool {
	var env AckEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return false
	}
	return env.Success
}

// ConnectionAckPayload is the payload of the connection.ack event type.
type ConnectionAckPayload struct {
	SessionID string `json:"session_id"`
}

// ErrorPayload is the payload of any *.error event type.
type ErrorPayload struct {
	Message     string `json:"message"`
	Code        string `json:"code,omitempty"`
	RequestType string `json:"requestType,omitempty"`
}

// AudioStartPayload is the payload of the outbound *.audio.start event.
type AudioStartPayload struct {
	SamplingRate int    `json:"samplingRate"`
	Language     string `json:"language,omitempty"`
}

// ResponseStartPayload is the payload of the inbound *.response.start
// event: it names the utterance that response.chunk frames belong to until
// the next response.start, response.interrupt, or response.stop.
type ResponseStartPayload struct {
	UtteranceID string `json:"utterance_id"`
}

// audio chunk payloads carry a raw PCM byte buffer and are encoded as a
// small binary header followed by the remainder of the slice, so the audio
// bytes can alias all the way from the transport receive buffer into the
// playback sequencer (spec §9) without an intermediate JSON/base64 copy.
//
//	[1] isMuted / reserved flags
//	[4] sample rate (outbound: 0 = "not carried"; inbound response chunks set it)
//	[..] raw PCM16LE bytes (remainder of the slice)
const audioChunkHeaderBytes = 5

// EncodeAudioChunk builds an outbound *.audio.chunk payload.
func EncodeAudioChunk(audio []byte, isMuted bool) []byte {
	buf := make([]byte, audioChunkHeaderBytes+len(audio))
	if isMuted {
		buf[0] = 1
	}
	copy(buf[audioChunkHeaderBytes:], audio)
	return buf
}

// DecodeAudioChunk parses an *.audio.chunk or *.response.chunk payload. The
// returned audio slice aliases payload; callers that retain it (notably the
// playback sequencer) must copy.
func DecodeAudioChunk(payload []byte) (audio []byte, sampleRate int, isMuted bool, err error) {
	if len(payload) < audioChunkHeaderBytes {
		return nil, 0, false, fmt.Errorf("wire: audio chunk payload too short (%d bytes)", len(payload))
	}
	isMuted = payload[0] == 1
	sampleRate = int(binary.LittleEndian.Uint32(payload[1:]))
	audio = payload[audioChunkHeaderBytes:]
	return audio, sampleRate, isMuted, nil
}

// EncodeResponseChunk builds an inbound *.response.chunk payload; used by
// tests and fakes that simulate the server side of the wire protocol.
func EncodeResponseChunk(audio []byte, sampleRate int) []byte {
	buf := make([]byte, audioChunkHeaderBytes+len(audio))
	binary.LittleEndian.PutUint32(buf[1:], uint32(sampleRate))
	copy(buf[audioChunkHeaderBytes:], audio)
	return buf
}
