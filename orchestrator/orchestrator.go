// Package orchestrator is the Orchestrator (C10): it wires capture (C7),
// the session manager (C6), and the playback sequencer (C8) end to end,
// issuing audio.start/audio.chunk/audio.end with the acknowledgment
// discipline the wire protocol requires, and routing inbound response
// events to the sequencer and the event bus. Grounded on the teacher's
// sendLoop failure tolerance (a failed frame send is logged and streaming
// continues; frames are sent from the capture callback, with no goroutine
// or failure counter of the orchestrator's own) and its
// ConnectVoice/DisconnectVoice ack-gated start/stop sequencing.
package orchestrator

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"voicecore/bus"
	"voicecore/capture"
	"voicecore/playback"
	"voicecore/session"
	"voicecore/transport"
	"voicecore/voicecfg"
	"voicecore/wire"
)

var (
	// ErrNotReady is returned by StartRecording when the transport is not
	// connected or no session_id has been latched yet.
	ErrNotReady = errors.New("not-ready")
	// ErrAlreadyRecording is returned by StartRecording when a recording
	// session is already active.
	ErrAlreadyRecording = errors.New("already-capturing")
)

const (
	audioStartEventType = "voicechat.audio.start"
	audioChunkEventType = "voicechat.audio.chunk"
	audioEndEventType   = "voicechat.audio.end"

	responseStartEventType     = "voicechat.response.start"
	responseChunkEventType     = "voicechat.response.chunk"
	responseCompleteEventType  = "voicechat.response.complete"
	responseInterruptEventType = "voicechat.response.interrupt"
	responseStopEventType      = "voicechat.response.stop"
	responseErrorBaseEventType = "voicechat.response"
)

// Orchestrator coordinates one recording session at a time.
type Orchestrator struct {
	cfg       voicecfg.Config
	manager   *session.Manager
	capturer  capture.Capturer
	sequencer *playback.Sequencer
	bus       *bus.Bus

	mu        sync.Mutex
	recording bool
	activeUtt string
}

// New wires an Orchestrator around its collaborators and registers the
// response-event handlers on mgr's owned registry.
func New(cfg voicecfg.Config, mgr *session.Manager, capturer capture.Capturer, seq *playback.Sequencer, b *bus.Bus) *Orchestrator {
	o := &Orchestrator{cfg: cfg, manager: mgr, capturer: capturer, sequencer: seq, bus: b}
	mgr.Register(responseStartEventType, o.handleResponseStart)
	mgr.Register(responseChunkEventType, o.handleResponseChunk)
	mgr.Register(responseCompleteEventType, o.handleResponseComplete)
	mgr.Register(responseInterruptEventType, o.handleResponseInterrupt)
	mgr.Register(responseStopEventType, o.handleResponseStop)
	mgr.RegisterError(responseErrorBaseEventType, o.handleResponseError)
	return o
}

// activeUtterance returns the utterance id most recently adopted from a
// response.start event, for tests and diagnostics.
func (o *Orchestrator) activeUtterance() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeUtt
}

// StartRecording begins a recording session: it verifies readiness, starts
// capture, and announces audio.start under an acknowledgment. Both steps run
// in one errgroup: the audio.start send waits for capture to report its
// actual rate, and a failure of either cancels the group and stops capture.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	o.mu.Lock()
	if o.recording {
		o.mu.Unlock()
		return ErrAlreadyRecording
	}
	o.mu.Unlock()

	if o.manager.Transport().State() != transport.StateConnected {
		return ErrNotReady
	}
	if o.manager.SessionID() == "" {
		return ErrNotReady
	}

	o.mu.Lock()
	o.recording = true
	o.mu.Unlock()

	var actualRate int
	g, gctx := errgroup.WithContext(ctx)
	startedCh := make(chan struct{})

	g.Go(func() error {
		rate, err := o.capturer.Start(o.onFrame, o.cfg.DefaultSampleRate)
		if err != nil {
			return fmt.Errorf("orchestrator: capture start: %w", err)
		}
		actualRate = rate
		close(startedCh)
		return nil
	})

	g.Go(func() error {
		select {
		case <-startedCh:
		case <-gctx.Done():
			return gctx.Err()
		}
		payload, err := marshalAudioStart(actualRate, o.cfg.DefaultLanguage)
		if err != nil {
			return err
		}
		_, err = o.manager.SendWithAck(gctx, audioStartEventType, payload, o.cfg.RequestDefaultTimeout)
		return err
	})

	if err := g.Wait(); err != nil {
		_ = o.capturer.Stop()
		o.mu.Lock()
		o.recording = false
		o.mu.Unlock()
		return err
	}
	return nil
}

// onFrame streams one captured frame as a fire-and-forget audio.chunk. Send
// failures are logged and never stop capture (spec: the orchestrator keeps
// streaming even if an individual chunk send fails).
func (o *Orchestrator) onFrame(frame capture.Frame) {
	audio := make([]byte, len(frame.Samples)*2)
	for i, s := range frame.Samples {
		binary.LittleEndian.PutUint16(audio[i*2:], uint16(s))
	}
	payload := wire.EncodeAudioChunk(audio, false)
	if err := o.manager.Send(context.Background(), audioChunkEventType, payload); err != nil {
		log.Printf("[orchestrator] audio.chunk send failed: %v", err)
	}
}

// StopRecording stops capture locally and announces audio.end under an
// acknowledgment. The local stop always takes effect; an ack failure is
// surfaced to the caller but does not undo it, matching the teacher's
// DisconnectVoice discipline of tearing down local state unconditionally.
func (o *Orchestrator) StopRecording(ctx context.Context) error {
	o.mu.Lock()
	if !o.recording {
		o.mu.Unlock()
		return nil
	}
	o.recording = false
	o.mu.Unlock()

	stopErr := o.capturer.Stop()

	_, ackErr := o.manager.SendWithAck(ctx, audioEndEventType, nil, o.cfg.RequestDefaultTimeout)
	if stopErr != nil {
		return fmt.Errorf("orchestrator: capture stop: %w", stopErr)
	}
	return ackErr
}

func (o *Orchestrator) handleResponseStart(_ []byte, msg *wire.Message) error {
	var payload wire.ResponseStartPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.UtteranceID == "" {
		return fmt.Errorf("orchestrator: response.start missing utterance_id: %w", err)
	}

	o.sequencer.Stop()
	o.mu.Lock()
	o.activeUtt = payload.UtteranceID
	o.mu.Unlock()
	o.bus.PublishResponseStart(payload.UtteranceID)
	return nil
}

func (o *Orchestrator) handleResponseChunk(_ []byte, msg *wire.Message) error {
	audio, sampleRate, _, err := wire.DecodeAudioChunk(msg.Payload)
	if err != nil {
		return err
	}
	if sampleRate <= 0 || sampleRate > 192000 {
		sampleRate = o.cfg.DefaultSampleRate
	}

	o.mu.Lock()
	utteranceID := o.activeUtt
	o.mu.Unlock()
	if utteranceID == "" {
		log.Printf("[orchestrator] dropping response.chunk with no active utterance")
		return nil
	}

	if err := o.sequencer.PlayChunk(audio, sampleRate, utteranceID); err != nil {
		return err
	}
	o.bus.PublishResponseChunk(utteranceID, sampleRate)
	return nil
}

func (o *Orchestrator) handleResponseComplete(_ []byte, _ *wire.Message) error {
	o.mu.Lock()
	utteranceID := o.activeUtt
	o.mu.Unlock()
	o.bus.PublishResponseComplete(utteranceID)
	return nil
}

func (o *Orchestrator) handleResponseInterrupt(_ []byte, _ *wire.Message) error {
	o.sequencer.Stop()
	o.mu.Lock()
	utteranceID := o.activeUtt
	o.activeUtt = ""
	o.mu.Unlock()
	o.bus.PublishResponseInterrupt(utteranceID)
	return nil
}

func (o *Orchestrator) handleResponseStop(_ []byte, _ *wire.Message) error {
	o.sequencer.Stop()
	o.mu.Lock()
	o.activeUtt = ""
	o.mu.Unlock()
	o.bus.PublishResponseStop()
	return nil
}

func (o *Orchestrator) handleResponseError(_ []byte, msg *wire.Message) error {
	var payload wire.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		payload.Message = string(msg.Payload)
	}
	o.bus.PublishError(payload.Code, payload.Message)
	return nil
}

func marshalAudioStart(sampleRate int, language string) ([]byte, error) {
	return json.Marshal(wire.AudioStartPayload{SamplingRate: sampleRate, Language: language})
}
