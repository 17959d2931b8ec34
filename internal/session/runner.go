// internal/session/runner.go
// Package session orchestrates one drill: it synthesizes audio block by
// block, streams it through a bounded queue to the output device, and
// logs ground-truth events for later scoring.
package session

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/cwtrainer/internal/drill"
	"github.com/ColonelBlimp/cwtrainer/internal/recovery"
	"github.com/ColonelBlimp/cwtrainer/internal/synth"
)

const (
	// SampleRate is the fixed output sample rate of a session.
	SampleRate = 48000
	// ChunkFrames is the fixed chunk size pushed into the delivery queue.
	ChunkFrames = 4096
	// QueueDepth bounds the delivery queue; a full queue blocks the
	// orchestrator until the device catches up.
	QueueDepth = 8
	// DrillDuration is the wall-clock deadline of the timed modes
	// (reanchor, overspeed).
	DrillDuration = 2 * time.Minute
	// CatalogPasses is how many full passes the line-based modes
	// (contrast, context) make over their generated line set.
	CatalogPasses = 4
	// StatusComplete is the reserved status string reported when a
	// session finishes naturally. The controlling layer must treat it as
	// an implicit stop trigger.
	StatusComplete = "SESSION_COMPLETE"
)

var (
	// ErrAlreadyStarted indicates the single-shot runner was reused
	ErrAlreadyStarted = errors.New("session runner already started")
	// ErrSpecRequired indicates a validated drill spec is required
	ErrSpecRequired = errors.New("drill spec is invalid")
)

// Event kinds written to the session log.
const (
	EventBlock         = "block"
	EventLine          = "line"
	EventContext       = "ctx"
	EventOverspeedLine = "overspeed_line"
)

// Output renders interleaved stereo float32 frames. Implemented by
// audio.Playback; tests substitute an in-memory sink.
type Output interface {
	// Start prepares the device; a wrapped audio.ErrBackendUnavailable
	// aborts the session before any worker starts.
	Start() error
	// Write renders one chunk. An error ends the delivery loop.
	Write(samples []float32) error
	// Drain blocks until previously written samples have been rendered.
	Drain()
	// Close releases the device and unblocks any pending Write.
	Close() error
}

// StatusFunc receives human-readable session status lines, plus the
// StatusComplete sentinel on natural completion. Called from the
// orchestrator goroutine; must not block.
type StatusFunc func(msg string)

// State is the lifecycle phase of a runner.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Runner drives a single drill session. A runner is single-shot: once it
// reaches Completed or Stopped a new runner is required.
type Runner struct {
	spec    drill.Spec
	logPath string
	out     Output
	status  StatusFunc

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	// frames is the bounded delivery queue. The orchestrator is the sole
	// sender and closer; closing it is the end-of-stream sentinel.
	frames       chan []float32
	deliveryDone chan struct{}

	mu        sync.Mutex
	sentLines []string

	rng   *rand.Rand
	state atomic.Int32
}

// New creates a runner for a validated spec. The log file is created (or
// appended to) at logPath when Run starts.
func New(spec drill.Spec, logPath string, out Output, status StatusFunc) (*Runner, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpecRequired, err)
	}
	if status == nil {
		status = func(string) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		spec:         spec,
		logPath:      logPath,
		out:          out,
		status:       status,
		ctx:          ctx,
		cancel:       cancel,
		frames:       make(chan []float32, QueueDepth),
		deliveryDone: make(chan struct{}),
		rng: rand.New(rand.NewPCG(
			uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}, nil
}

// State returns the current lifecycle phase.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Stop requests cooperative cancellation. It is idempotent and safe to
// call from any goroutine; the orchestrator observes it at block
// boundaries and at queue operations.
func (r *Runner) Stop() {
	r.stopOnce.Do(r.cancel)
}

// SentLines returns a snapshot of the ground-truth lines played so far
// (context and overspeed modes only).
func (r *Runner) SentLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sentLines...)
}

// Run executes the session to completion or cancellation. It blocks; the
// controlling goroutine typically runs it in the background and calls
// Stop from a signal handler or UI action.
func (r *Runner) Run() error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	if err := os.MkdirAll(filepath.Dir(r.logPath), 0755); err != nil {
		r.state.Store(int32(StateStopped))
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(r.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		r.state.Store(int32(StateStopped))
		return fmt.Errorf("open session log: %w", err)
	}
	defer logFile.Close()

	w := csv.NewWriter(logFile)
	r.writeRow(w, []string{"timestamp", "mode", "pair", "event", "info"})

	if err := r.out.Start(); err != nil {
		r.state.Store(int32(StateStopped))
		r.status(fmt.Sprintf("Audio output unavailable: %v", err))
		return fmt.Errorf("start audio output: %w", err)
	}
	defer r.out.Close()

	go func() {
		defer recovery.HandlePanicFunc(func() {
			close(r.deliveryDone)
		})
		r.deliver()
		close(r.deliveryDone)
	}()

	var completed bool
	switch r.spec.Mode {
	case drill.ModeReanchor:
		completed = r.runReanchor(w)
	case drill.ModeContrast:
		completed = r.runContrast(w)
	case drill.ModeContext:
		completed = r.runContext(w)
	case drill.ModeOverspeed:
		completed = r.runOverspeed(w)
	}

	// End-of-stream sentinel: the delivery loop drains what is queued and
	// exits. On cancellation it exits without draining.
	close(r.frames)
	<-r.deliveryDone
	w.Flush()

	if completed && r.ctx.Err() == nil {
		r.out.Drain()
		r.state.Store(int32(StateCompleted))
		r.status(StatusComplete)
		return nil
	}
	r.state.Store(int32(StateStopped))
	return nil
}

// deliver is the sole consumer of the delivery queue. It exits on the
// end-of-stream sentinel, on cancellation, or on the first device error;
// a broken output device ends the drill.
func (r *Runner) deliver() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case chunk, ok := <-r.frames:
			if !ok {
				return
			}
			if err := r.out.Write(chunk); err != nil {
				r.status(fmt.Sprintf("Audio output error: %v", err))
				r.Stop()
				return
			}
		}
	}
}

// enqueue splits a buffer into fixed-size chunks and pushes them into the
// delivery queue, blocking on a full queue until the consumer catches up
// or the session is cancelled. Returns false once cancellation is seen;
// a chunk already being enqueued still completes.
func (r *Runner) enqueue(buf []float32) bool {
	step := ChunkFrames * synth.Channels
	for i := 0; i < len(buf); i += step {
		end := i + step
		if end > len(buf) {
			end = len(buf)
		}
		select {
		case <-r.ctx.Done():
			return false
		case r.frames <- buf[i:end]:
		}
	}
	return true
}

func (r *Runner) stopped() bool {
	return r.ctx.Err() != nil
}

// newBlockSynth builds a fresh synthesizer for one audio block. WPM
// jitter is drawn here, once per block; tone jitter is drawn inside the
// synthesizer, once per symbol. Stereo panning is honored only for the
// modes that train with it.
func (r *Runner) newBlockSynth(wpm float64, allowStereo bool) (*synth.Synth, error) {
	if r.spec.WPMJitter > 0 {
		wpm += (r.rng.Float64()*2 - 1) * r.spec.WPMJitter
		if wpm < 1 {
			wpm = 1
		}
	}
	pair := ""
	if allowStereo && r.spec.Stereo {
		pair = r.spec.PairString()
	}
	cfg := synth.Config{
		SampleRate:   SampleRate,
		WPM:          wpm,
		ToneHz:       r.spec.ToneHz,
		JitterPct:    r.spec.JitterPct,
		ToneJitterHz: r.spec.ToneJitterHz,
		StereoPair:   pair,
		PanStrength:  r.spec.PanStrength,
		SwapChannels: r.spec.SwapChannels,
		Gain:         r.spec.Gain,
	}
	return synth.New(cfg, r.rng)
}

func (r *Runner) writeRow(w *csv.Writer, row []string) {
	_ = w.Write(row)
	w.Flush()
}

func (r *Runner) logEvent(w *csv.Writer, event, info string) {
	r.writeRow(w, []string{
		time.Now().Format(time.RFC3339Nano),
		string(r.spec.Mode),
		r.spec.PairString(),
		event,
		info,
	})
}

func (r *Runner) appendLine(line string) {
	r.mu.Lock()
	r.sentLines = append(r.sentLines, line)
	r.mu.Unlock()
}

// runReanchor alternates a low-WPM and a high-WPM block of the same
// repeating two-symbol pattern until the drill deadline. The stop flag is
// checked between the two blocks of an iteration so a stop never leaves
// the pair of blocks ambiguous in the log.
func (r *Runner) runReanchor(w *csv.Writer) bool {
	ab := r.spec.PairString()
	lowReps, highReps := drill.BlockReps(r.spec.TimingBalance, r.spec.LowWPM, r.spec.HighWPM)
	lowPattern := strings.Repeat(ab, lowReps)
	highPattern := strings.Repeat(ab, highReps)

	r.status(fmt.Sprintf("Re-anchor: alternating %s at %g/%g WPM (%d/%d reps). Focus on rhythm, no copying.",
		ab, r.spec.LowWPM, r.spec.HighWPM, lowReps, highReps))

	deadline := time.Now().Add(DrillDuration)
	for time.Now().Before(deadline) {
		if r.stopped() {
			return false
		}
		r.logEvent(w, EventBlock, fmt.Sprintf("%gwpm x%d", r.spec.LowWPM, lowReps))
		if !r.playBlock(lowPattern, r.spec.LowWPM, true) {
			return false
		}
		if r.stopped() {
			return false
		}
		r.logEvent(w, EventBlock, fmt.Sprintf("%gwpm x%d", r.spec.HighWPM, highReps))
		if !r.playBlock(highPattern, r.spec.HighWPM, true) {
			return false
		}
	}
	return true
}

// runContrast plays the fixed pair catalog at the nominal WPM for a fixed
// number of passes, a short silence between lines.
func (r *Runner) runContrast(w *csv.Writer) bool {
	lines := drill.PairSequences(r.spec.Pair, drill.MaxCatalogLines)
	r.status("Contrast: copy short dense pair lines at normal speed. Accuracy over speed.")

	for pass := 0; pass < CatalogPasses; pass++ {
		for _, line := range lines {
			if r.stopped() {
				return false
			}
			r.logEvent(w, EventLine, line)
			if !r.playLine(line, r.spec.WPM, true) {
				return false
			}
		}
	}
	return true
}

// runContext plays generated call-like lines (mono) and records every
// line as ground truth before it is enqueued.
func (r *Runner) runContext(w *csv.Writer) bool {
	lines := drill.ContextLines(r.rng, r.spec.Pair, drill.MaxCatalogLines)
	r.status("Context: copy what you hear. Scoring runs on stop.")

	for pass := 0; pass < CatalogPasses; pass++ {
		for _, line := range lines {
			if r.stopped() {
				return false
			}
			r.appendLine(line)
			r.logEvent(w, EventContext, line)
			if !r.playLine(line, r.spec.WPM, false) {
				return false
			}
		}
	}
	return true
}

// runOverspeed plays the pair catalog (mono) above copy speed in
// round-robin until the drill deadline, recording every line as ground
// truth before it is enqueued.
func (r *Runner) runOverspeed(w *csv.Writer) bool {
	lines := drill.PairSequences(r.spec.Pair, drill.MaxCatalogLines)
	r.status(fmt.Sprintf("Overspeed: %g WPM bursts. Copy what you can; scoring runs on stop.", r.spec.OverspeedWPM))

	deadline := time.Now().Add(DrillDuration)
	for i := 0; time.Now().Before(deadline); i++ {
		if r.stopped() {
			return false
		}
		line := lines[i%len(lines)]
		r.appendLine(line)
		r.logEvent(w, EventOverspeedLine, line)
		if !r.playLine(line, r.spec.OverspeedWPM, false) {
			return false
		}
	}
	return true
}

// playBlock synthesizes and enqueues one pattern block.
func (r *Runner) playBlock(pattern string, wpm float64, allowStereo bool) bool {
	syn, err := r.newBlockSynth(wpm, allowStereo)
	if err != nil {
		r.status(fmt.Sprintf("Synthesizer error: %v", err))
		return false
	}
	return r.enqueue(syn.StringAudio(pattern))
}

// playLine synthesizes and enqueues one text line plus the inter-line
// silence (three word gaps, as played between catalog lines).
func (r *Runner) playLine(line string, wpm float64, allowStereo bool) bool {
	syn, err := r.newBlockSynth(wpm, allowStereo)
	if err != nil {
		r.status(fmt.Sprintf("Synthesizer error: %v", err))
		return false
	}
	if !r.enqueue(syn.StringAudio(line)) {
		return false
	}
	return r.enqueue(syn.StringAudio("   "))
}
