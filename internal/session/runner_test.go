package session

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ColonelBlimp/cwtrainer/internal/drill"
	"github.com/ColonelBlimp/cwtrainer/internal/synth"
)

// fakeOutput is an in-memory Output that consumes chunks instantly.
type fakeOutput struct {
	mu        sync.Mutex
	startErr  error
	writeErr  error
	failAfter int // fail on the Nth write when writeErr is set (1-based)
	writes    int
	chunkLens []int
	closed    bool
}

func (f *fakeOutput) Start() error { return f.startErr }

func (f *fakeOutput) Write(samples []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.chunkLens = append(f.chunkLens, len(samples))
	if f.writeErr != nil && f.writes >= f.failAfter {
		return f.writeErr
	}
	return nil
}

func (f *fakeOutput) Drain() {}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeOutput) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// statusRecorder collects status messages across goroutines.
type statusRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (s *statusRecorder) record(msg string) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func (s *statusRecorder) contains(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func testSpec(mode drill.Mode) drill.Spec {
	return drill.Spec{
		Mode:          mode,
		Pair:          [2]rune{'H', '5'},
		WPM:           60, // fast elements keep test buffers small
		ToneHz:        650,
		PanStrength:   1,
		LowWPM:        40,
		HighWPM:       60,
		TimingBalance: 1,
		OverspeedWPM:  60,
		Gain:          0.25,
	}
}

// readEventRows collects the complete 5-column rows for one event kind.
// It tolerates a partially written trailing row, since some tests poll the
// log while the runner is still appending.
func readEventRows(t *testing.T, logPath, event string) [][]string {
	t.Helper()
	f, err := os.Open(logPath)
	if err != nil {
		// Callers poll before Run has created the log; treat a
		// missing file as no rows yet.
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	var out [][]string
	for {
		row, err := rd.Read()
		if err != nil {
			break
		}
		if len(row) == 5 && row[3] == event {
			out = append(out, row)
		}
	}
	return out
}

func TestNew_InvalidSpec(t *testing.T) {
	spec := testSpec(drill.ModeContrast)
	spec.Pair = [2]rune{'H', 'H'}
	_, err := New(spec, filepath.Join(t.TempDir(), "s.csv"), &fakeOutput{}, nil)
	if !errors.Is(err, ErrSpecRequired) {
		t.Errorf("New() error = %v, want %v", err, ErrSpecRequired)
	}
}

func TestRun_ContrastCompletesNaturally(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "session.csv")
	out := &fakeOutput{}
	rec := &statusRecorder{}

	r, err := New(testSpec(drill.ModeContrast), logPath, out, rec.record)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.State() != StateCompleted {
		t.Errorf("State() = %v, want %v", r.State(), StateCompleted)
	}
	if !rec.contains(StatusComplete) {
		t.Error("status sink never received the completion sentinel")
	}

	// 6 catalog lines x 4 passes
	lineRows := readEventRows(t, logPath, EventLine)
	if len(lineRows) != 24 {
		t.Errorf("logged %d line events, want 24", len(lineRows))
	}
	for _, row := range lineRows {
		if row[1] != string(drill.ModeContrast) || row[2] != "H5" {
			t.Errorf("line row mode/pair = %v, want contrast/H5", row[1:3])
		}
	}

	// Chunks never exceed the fixed size and arrive in generation order.
	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.chunkLens) == 0 {
		t.Fatal("no chunks delivered")
	}
	for i, n := range out.chunkLens {
		if n > ChunkFrames*synth.Channels {
			t.Errorf("chunk %d has %d samples, max %d", i, n, ChunkFrames*synth.Channels)
		}
	}
	if !out.closed {
		t.Error("output was not closed")
	}
}

func TestRun_ContextRecordsGroundTruth(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "session.csv")
	r, err := New(testSpec(drill.ModeContext), logPath, &fakeOutput{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sent := r.SentLines()
	if len(sent) != 24 {
		t.Fatalf("SentLines() len = %d, want 24 (6 lines x 4 passes)", len(sent))
	}
	ctxRows := readEventRows(t, logPath, EventContext)
	if len(ctxRows) != len(sent) {
		t.Fatalf("logged %d ctx events, want %d", len(ctxRows), len(sent))
	}
	for i, row := range ctxRows {
		if row[4] != sent[i] {
			t.Errorf("ctx row %d info = %q, want %q", i, row[4], sent[i])
		}
	}
	// All four passes replay the same generated line set.
	for i := 0; i < 6; i++ {
		if sent[i] != sent[i+6] {
			t.Errorf("pass 2 line %d = %q, want %q", i, sent[i+6], sent[i])
		}
	}
}

func TestRun_StopEndsOverspeedSession(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "session.csv")
	r, err := New(testSpec(drill.ModeOverspeed), logPath, &fakeOutput{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	// Wait for the loop to produce ground truth, then stop.
	deadline := time.Now().Add(5 * time.Second)
	for len(r.SentLines()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no overspeed lines produced")
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()
	r.Stop() // idempotent

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after Stop()")
	}

	if r.State() != StateStopped {
		t.Errorf("State() = %v, want %v", r.State(), StateStopped)
	}
	rows := readEventRows(t, logPath, EventOverspeedLine)
	if len(rows) == 0 {
		t.Error("no overspeed_line events logged before stop")
	}
}

func TestRun_ReanchorLogsAlternatingBlocks(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "session.csv")
	r, err := New(testSpec(drill.ModeReanchor), logPath, &fakeOutput{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	// Let a couple of block pairs through, then stop.
	deadline := time.Now().Add(5 * time.Second)
	for len(readEventRows(t, logPath, EventBlock)) < 4 {
		if time.Now().After(deadline) {
			t.Fatal("reanchor produced fewer than 4 blocks")
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows := readEventRows(t, logPath, EventBlock)
	// Blocks alternate low, high, low, high with the balance-derived reps.
	low, high := drill.BlockReps(1, 40, 60)
	for i, row := range rows {
		var want string
		if i%2 == 0 {
			want = "40wpm x" + strconv.Itoa(low)
		} else {
			want = "60wpm x" + strconv.Itoa(high)
		}
		if row[4] != want {
			t.Errorf("block row %d info = %q, want %q", i, row[4], want)
		}
	}
}

func TestRun_SingleShot(t *testing.T) {
	r, err := New(testSpec(drill.ModeContrast), filepath.Join(t.TempDir(), "s.csv"), &fakeOutput{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := r.Run(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run() error = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestRun_OutputStartFailureAborts(t *testing.T) {
	out := &fakeOutput{startErr: errors.New("no backend")}
	rec := &statusRecorder{}
	r, err := New(testSpec(drill.ModeContrast), filepath.Join(t.TempDir(), "s.csv"), out, rec.record)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := r.Run(); err == nil {
		t.Fatal("Run() error = nil, want startup error")
	}
	if r.State() != StateStopped {
		t.Errorf("State() = %v, want %v", r.State(), StateStopped)
	}
	if out.writeCount() != 0 {
		t.Errorf("output received %d writes after failed start, want 0", out.writeCount())
	}
	if !rec.contains("unavailable") {
		t.Error("status sink never reported the fatal audio error")
	}
}

func TestRun_DeviceErrorEndsDrill(t *testing.T) {
	out := &fakeOutput{writeErr: errors.New("device gone"), failAfter: 1}
	rec := &statusRecorder{}
	r, err := New(testSpec(drill.ModeContrast), filepath.Join(t.TempDir(), "s.csv"), out, rec.record)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() hung after device error")
	}

	if r.State() != StateStopped {
		t.Errorf("State() = %v, want %v", r.State(), StateStopped)
	}
	if !rec.contains("Audio output error") {
		t.Error("status sink never reported the device error")
	}
}

func TestNewBlockSynth_HonorsSpecGain(t *testing.T) {
	peakFor := func(gain float64) float32 {
		spec := testSpec(drill.ModeContrast)
		spec.Gain = gain
		r, err := New(spec, filepath.Join(t.TempDir(), "s.csv"), &fakeOutput{}, nil)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		syn, err := r.newBlockSynth(spec.WPM, false)
		if err != nil {
			t.Fatalf("newBlockSynth() error = %v", err)
		}
		var peak float32
		for _, s := range syn.SymbolAudio('H') {
			if s > peak {
				peak = s
			}
		}
		return peak
	}

	loud := peakFor(0.8)
	quiet := peakFor(0.2)
	if loud <= quiet {
		t.Fatalf("peak at gain 0.8 = %v, not above peak at gain 0.2 = %v", loud, quiet)
	}
	// The tone reaches full amplitude between the edge ramps, so the peak
	// tracks the configured gain closely.
	if loud < 0.75 || loud > 0.8 {
		t.Errorf("peak at gain 0.8 = %v, want approximately 0.8", loud)
	}
	if quiet < 0.15 || quiet > 0.2 {
		t.Errorf("peak at gain 0.2 = %v, want approximately 0.2", quiet)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateRunning, "running"},
		{StateCompleted, "completed"},
		{StateStopped, "stopped"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
