package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func runCmd(t *testing.T, args ...string) (stdout, stderr *bytes.Buffer, exitCode int) {
	t.Helper()

	outFile, err := os.CreateTemp(t.TempDir(), "stdout")
	if err != nil {
		t.Fatal(err)
	}
	errFile, err := os.CreateTemp(t.TempDir(), "stderr")
	if err != nil {
		t.Fatal(err)
	}
	defer outFile.Close()
	defer errFile.Close()

	exitCode = run(args, outFile, errFile)

	out, err := os.ReadFile(outFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	errOut, err := os.ReadFile(errFile.Name())
	if err != nil {
		t.Fatal(err)
	}

	return bytes.NewBuffer(out), bytes.NewBuffer(errOut), exitCode
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	t.Parallel()

	_, stderr, exitCode := runCmd(t)
	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(stderr.String(), "Usage: cachectl") {
		t.Errorf("stderr = %q, want to contain usage", stderr.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	t.Parallel()

	_, stderr, exitCode := runCmd(t, "bogus")
	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(stderr.String(), "unknown command") || !strings.Contains(stderr.String(), "bogus") {
		t.Errorf("stderr = %q, want unknown command message", stderr.String())
	}
}

// Each runCmd call builds its own ephemeral in-memory Manager (the
// default backend, with no on-disk persistence), so set and get can't be
// observed across two separate runCmd invocations here; this only checks
// that set itself succeeds against the default backend.
func TestRun_Set(t *testing.T) {
	t.Parallel()

	_, stderr, exitCode := runCmd(t, "set", "team:7", "hello")
	if exitCode != 0 {
		t.Fatalf("set failed: %s", stderr.String())
	}
}

func TestRun_SetWithFlags(t *testing.T) {
	t.Parallel()

	_, stderr, exitCode := runCmd(t, "set", "team:7", "hello", "--ttl=30s", "--tags=team,roster")
	if exitCode != 0 {
		t.Fatalf("set failed: %s", stderr.String())
	}
}

func TestRun_SetRequiresKeyAndValue(t *testing.T) {
	t.Parallel()

	_, stderr, exitCode := runCmd(t, "set", "onlykey")
	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(stderr.String(), "requires exactly a key and a value") {
		t.Errorf("stderr = %q, want requires-key-and-value message", stderr.String())
	}
}

func TestRun_GetMiss(t *testing.T) {
	t.Parallel()

	stdout, _, exitCode := runCmd(t, "get", "nonexistent")
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
	if !strings.Contains(stdout.String(), "(miss)") {
		t.Errorf("stdout = %q, want (miss)", stdout.String())
	}
}

func TestRun_GetRequiresOneKey(t *testing.T) {
	t.Parallel()

	_, stderr, exitCode := runCmd(t, "get")
	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(stderr.String(), "requires exactly one key") {
		t.Errorf("stderr = %q, want requires-one-key message", stderr.String())
	}
}

func TestRun_InvalidateMissingKey(t *testing.T) {
	t.Parallel()

	stdout, stderr, exitCode := runCmd(t, "invalidate", "nonexistent")
	if exitCode != 0 {
		t.Fatalf("invalidate failed: %s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "invalidated 0 key(s)") {
		t.Errorf("stdout = %q, want 'invalidated 0 key(s)'", stdout.String())
	}
}

func TestRun_InvalidateRequiresOneKey(t *testing.T) {
	t.Parallel()

	_, stderr, exitCode := runCmd(t, "invalidate")
	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(stderr.String(), "requires exactly one key") {
		t.Errorf("stderr = %q, want requires-one-key message", stderr.String())
	}
}

func TestRun_Stats(t *testing.T) {
	t.Parallel()

	stdout, stderr, exitCode := runCmd(t, "stats")
	if exitCode != 0 {
		t.Fatalf("stats failed: %s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "hits=") {
		t.Errorf("stdout = %q, want hits=", stdout.String())
	}
}

func TestRun_Help(t *testing.T) {
	t.Parallel()

	stdout, stderr, exitCode := runCmd(t, "get", "--help")
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
	if stderr.String() != "" {
		t.Errorf("stderr = %q, want empty", stderr.String())
	}
	if !strings.Contains(stdout.String(), "Usage: cachectl get") {
		t.Errorf("stdout = %q, want to contain usage", stdout.String())
	}
}
