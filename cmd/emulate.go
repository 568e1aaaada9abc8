// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/glitchctl/driver/sim"
	"github.com/Thermoquad/glitchctl/pkg/glitch"
	"github.com/Thermoquad/glitchctl/pkg/trace"
	"github.com/Thermoquad/glitchctl/transport"
)

var (
	emulateConfig    = glitch.DefaultConfig()
	emulateSimConfig = sim.DefaultConfig()
	emulateListen    string
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a simulated glitch controller",
	Long: `Run the controller firmware against a cycle-level model of the rig.

The simulated board counts the coarse and fine timers, models interrupt and
boot latency and records the glitch rail, so every command produces a
measurement of where the pulse actually landed.

Serial mode (--port) serves the controller on a serial device, e.g. one end
of a virtual null-modem pair, and prints each measurement.

Server mode (default) listens for WebSocket clients:
  /glitch  the controller byte stream, one session at a time
  /trace   CBOR measurement frames for every finished command

With --username, clients must authenticate with HTTP Basic auth using the
password from GLITCHCTL_PASSWORD.`,
	Example: `  glitchctl emulate --listen :8080
  glitchctl emulate --port /dev/pts/4 --coarse-isr-latency 21`,
	Args: cobra.NoArgs,
	RunE: runEmulate,
}

func init() {
	rootCmd.AddCommand(emulateCmd)

	fs := emulateCmd.Flags()
	fs.StringVar(&emulateListen, "listen", ":8080", "Listen address in server mode")
	addConfigFlags(fs, &emulateConfig)

	fs.Uint32Var(&emulateSimConfig.CoarseHz, "coarse-hz", emulateSimConfig.CoarseHz, "Simulated coarse (CPU) clock")
	fs.Uint32Var(&emulateSimConfig.CoarseISRLatency, "coarse-isr-latency", emulateSimConfig.CoarseISRLatency, "Simulated coarse interrupt cost in cycles")
	fs.Uint32Var(&emulateSimConfig.FineISRLatency, "fine-isr-latency", emulateSimConfig.FineISRLatency, "Simulated fine interrupt cost in cycles")
	fs.Uint32Var(&emulateSimConfig.BootLatency, "boot-latency", emulateSimConfig.BootLatency, "Simulated cycles from reset release to the target's first cycle")
	fs.BoolVar(&emulateSimConfig.PLLFail, "pll-fail", false, "Simulate a PLL that never locks")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	if err := emulateConfig.Validate(); err != nil {
		return fmt.Errorf("invalid timing configuration: %w", err)
	}
	// The board runs at the controller's ratio; --ratio sets both
	emulateSimConfig.FrequencyRatio = emulateConfig.FrequencyRatio

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if portName != "" {
		return emulateSerial(ctx)
	}
	return emulateServer(ctx)
}

func emulateSerial(ctx context.Context) error {
	conn, err := OpenSerialConnection(portName, baudRate)
	if err != nil {
		return err
	}
	defer conn.Close()

	board := sim.NewBoard(emulateSimConfig)
	ctrl, err := glitch.NewController(board, transport.NewStream(conn), emulateConfig)
	if err != nil {
		return err
	}
	ctrl.SetObserver(sim.NewRecorder(board, func(m trace.Measurement) {
		fmt.Print(trace.Format(m))
		fmt.Println()
	}))

	fmt.Printf("Glitchctl - Emulator\n")
	fmt.Printf("Serial: %s @ %d baud\n", portName, baudRate)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	err = ctrl.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func emulateServer(ctx context.Context) error {
	password, err := passwordFor(wsUsername)
	if err != nil {
		return err
	}

	e := newEmulator(emulateConfig, sim.NewBoard(emulateSimConfig), wsUsername, password)

	mux := http.NewServeMux()
	mux.HandleFunc("/glitch", e.handleGlitch)
	mux.HandleFunc("/trace", e.handleTrace)

	srv := &http.Server{
		Addr:              emulateListen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	fmt.Printf("Glitchctl - Emulator\n")
	fmt.Printf("Listening: %s (/glitch, /trace)\n", emulateListen)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ============================================================
// WebSocket Emulator
// ============================================================

// emulator serves one simulated board to WebSocket clients. The board is
// shared between sessions; session serialises access to it.
type emulator struct {
	cfg      glitch.Config
	board    *sim.Board
	recorder *sim.Recorder
	hub      *traceHub

	username string
	password string

	session  sync.Mutex
	upgrader websocket.Upgrader
}

func newEmulator(cfg glitch.Config, board *sim.Board, username, password string) *emulator {
	e := &emulator{
		cfg:      cfg,
		board:    board,
		hub:      newTraceHub(),
		username: username,
		password: password,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  256,
			WriteBufferSize: 256,
		},
	}
	e.recorder = sim.NewRecorder(board, e.hub.publish)
	return e
}

func (e *emulator) authorize(w http.ResponseWriter, r *http.Request) bool {
	if e.username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if ok &&
		subtle.ConstantTimeCompare([]byte(user), []byte(e.username)) == 1 &&
		subtle.ConstantTimeCompare([]byte(pass), []byte(e.password)) == 1 {
		return true
	}
	w.Header().Set("WWW-Authenticate", `Basic realm="glitchctl"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
	return false
}

func (e *emulator) handleGlitch(w http.ResponseWriter, r *http.Request) {
	if !e.authorize(w, r) {
		return
	}
	if !e.session.TryLock() {
		http.Error(w, "controller busy", http.StatusConflict)
		return
	}
	defer e.session.Unlock()

	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("glitch: upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	conn := NewWebSocketConnection(ws)
	defer conn.Close()

	glog.Infof("glitch: session from %s", r.RemoteAddr)
	stream := transport.NewStream(conn)

	ctrl, err := glitch.NewController(e.board, stream, e.cfg)
	if err != nil {
		glog.Errorf("glitch: %v", err)
		return
	}
	ctrl.SetObserver(e.recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stream.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	err = ctrl.Run(ctx)
	glog.Infof("glitch: session from %s ended: %v", r.RemoteAddr, err)
}

func (e *emulator) handleTrace(w http.ResponseWriter, r *http.Request) {
	if !e.authorize(w, r) {
		return
	}

	// Subscribe before the handshake completes so no frame is missed
	frames := e.hub.subscribe()
	defer e.hub.unsubscribe(frames)

	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("trace: upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer ws.Close()
	glog.Infof("trace: subscriber %s", r.RemoteAddr)

	// Reading is needed to notice the peer going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame := <-frames:
			_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				glog.V(1).Infof("trace: %s: %v", r.RemoteAddr, err)
				return
			}
		case <-closed:
			glog.Infof("trace: subscriber %s left", r.RemoteAddr)
			return
		}
	}
}

// ============================================================
// Trace Fan-out
// ============================================================

// traceHubBuffer is the number of frames queued per subscriber before
// frames are dropped for it
const traceHubBuffer = 32

type traceHub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func newTraceHub() *traceHub {
	return &traceHub{subs: make(map[chan []byte]struct{})}
}

func (h *traceHub) subscribe() chan []byte {
	ch := make(chan []byte, traceHubBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *traceHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// publish encodes m once and queues it for every subscriber
func (h *traceHub) publish(m trace.Measurement) {
	frame, err := trace.Encode(m)
	if err != nil {
		glog.Errorf("trace: encode: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- frame:
		default:
			glog.Warningf("trace: subscriber too slow, dropped frame %d", m.Sequence)
		}
	}
}
