// Command voicebot is a terminal-driven demo of the voice-chat core: it
// connects to a server, starts a recording session against the default
// microphone and speaker, prints bus events as they arrive, and streams
// audio until interrupted. Grounded on the teacher's TestUser (a virtual
// peer that connects and streams continuously) and main.go's startup
// sequencing, with the Wails GUI shell (the teacher's actual entry point)
// replaced by a terminal session since this core has no UI shell of its
// own (spec §1, out-of-scope external collaborator).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicecore/adapters/portaudiocapture"
	"voicecore/adapters/portaudiosink"
	"voicecore/bus"
	"voicecore/capture"
	"voicecore/netstatus"
	"voicecore/orchestrator"
	"voicecore/playback"
	"voicecore/registry"
	"voicecore/reqtracker"
	"voicecore/session"
	"voicecore/transport"
	"voicecore/voicecfg"
)

func main() {
	addr := flag.String("addr", "ws://127.0.0.1:8080/ws", "voice server websocket URL")
	inputDevice := flag.Int("input-device", -1, "PortAudio input device index (-1 = default)")
	outputDevice := flag.Int("output-device", -1, "PortAudio output device index (-1 = default)")
	flag.Parse()

	cfg := voicecfg.Load()

	b := bus.Default()
	b.OnConnectionState(func(s transport.State) { log.Printf("[voicebot] connection state: %s", s) })
	b.OnConnectionAck(func(sessionID string) { log.Printf("[voicebot] session established: %s", sessionID) })
	b.OnResponseStart(func(utteranceID string) { log.Printf("[voicebot] response start: %s", utteranceID) })
	b.OnResponseComplete(func(utteranceID string) { log.Printf("[voicebot] response complete: %s", utteranceID) })
	b.OnResponseInterrupt(func(utteranceID string) { log.Printf("[voicebot] response interrupted: %s", utteranceID) })
	b.OnResponseStop(func() { log.Printf("[voicebot] response stopped") })
	b.OnError(func(code, message string) { log.Printf("[voicebot] error %s: %s", code, message) })

	monitor := netstatus.New(500 * time.Millisecond)
	tr := transport.New(cfg, monitor)
	reg := registry.New()
	tracker := reqtracker.New(cfg.RequestMaxPending, cfg.TrackerSweepInterval)
	defer tracker.Close()

	mgr := session.New(tr, reg, tracker, b)

	capturer := capture.Capturer(portaudiocapture.New(*inputDevice, cfg.CaptureBufferSamples))
	sink := playback.AudioSink(portaudiosink.New(*outputDevice))
	seq := playback.New(sink)
	defer seq.Destroy()

	orch := orchestrator.New(cfg, mgr, capturer, seq, b)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()
	if err := tr.Connect(connectCtx, *addr); err != nil {
		log.Fatalf("[voicebot] connect %s: %v", *addr, err)
	}

	deadline := time.Now().Add(cfg.ConnectionTimeout)
	for mgr.SessionID() == "" && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if mgr.SessionID() == "" {
		log.Fatal("[voicebot] no connection.ack received within connection-timeout")
	}

	startCtx, cancelStart := context.WithTimeout(ctx, cfg.RequestDefaultTimeout)
	defer cancelStart()
	if err := orch.StartRecording(startCtx); err != nil {
		log.Fatalf("[voicebot] start recording: %v", err)
	}
	fmt.Println("recording... press Ctrl+C to stop")

	<-ctx.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.RequestDefaultTimeout)
	defer cancelStop()
	if err := orch.StopRecording(stopCtx); err != nil {
		log.Printf("[voicebot] stop recording: %v", err)
	}
	mgr.Disconnect(true)
}
