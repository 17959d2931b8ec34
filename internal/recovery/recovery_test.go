package recovery

import (
	"bytes"
	"os"
	"os/exec"
	"testing"
)

func TestHandlePanic_NoPanic(t *testing.T) {
	// Must be a no-op on a clean return
	func() {
		defer HandlePanic()
	}()
}

func TestHandlePanicFunc_NoPanic(t *testing.T) {
	cleanupRan := false

	func() {
		defer HandlePanicFunc(func() {
			cleanupRan = true
		})
	}()

	if cleanupRan {
		t.Error("cleanup ran without a panic")
	}
}

func TestHandlePanicFunc_NilCleanup(t *testing.T) {
	func() {
		defer HandlePanicFunc(nil)
	}()
}

// TestHandlePanic_ExitsOnPanic re-runs the test binary so the os.Exit
// happens in a subprocess.
func TestHandlePanic_ExitsOnPanic(t *testing.T) {
	if os.Getenv("CWTRAINER_PANIC_MAIN") == "1" {
		defer HandlePanic()
		panic("synth blew up")
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestHandlePanic_ExitsOnPanic")
	cmd.Env = append(os.Environ(), "CWTRAINER_PANIC_MAIN=1")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()

	if exitErr, ok := err.(*exec.ExitError); ok {
		if exitErr.ExitCode() != 1 {
			t.Errorf("exit code = %d, want 1", exitErr.ExitCode())
		}
	} else if err == nil {
		t.Error("expected process to exit with error, but it succeeded")
	}

	output := stderr.String()
	for _, want := range []string{"FATAL", "synth blew up", "Stack trace"} {
		if !bytes.Contains([]byte(output), []byte(want)) {
			t.Errorf("stderr should contain %q, got: %s", want, output)
		}
	}
}

// TestHandlePanicFunc_ExitsOnPanic verifies the cleanup contract the
// session's delivery goroutine relies on: on panic the cleanup runs
// (closing the done channel) before the process exits.
func TestHandlePanicFunc_ExitsOnPanic(t *testing.T) {
	if os.Getenv("CWTRAINER_PANIC_WORKER") == "1" {
		defer HandlePanicFunc(func() {
			_, _ = os.Stdout.WriteString("CLEANUP_RAN\n")
		})
		panic("delivery blew up")
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestHandlePanicFunc_ExitsOnPanic")
	cmd.Env = append(os.Environ(), "CWTRAINER_PANIC_WORKER=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if exitErr, ok := err.(*exec.ExitError); ok {
		if exitErr.ExitCode() != 1 {
			t.Errorf("exit code = %d, want 1", exitErr.ExitCode())
		}
	} else if err == nil {
		t.Error("expected process to exit with error, but it succeeded")
	}

	if !bytes.Contains(stdout.Bytes(), []byte("CLEANUP_RAN")) {
		t.Errorf("stdout should contain 'CLEANUP_RAN', got: %s", stdout.String())
	}
	if !bytes.Contains(stderr.Bytes(), []byte("delivery blew up")) {
		t.Errorf("stderr should contain the panic value, got: %s", stderr.String())
	}
}
