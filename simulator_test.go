package txsim

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAiken writes a shell script standing in for the aiken binary. It
// records its arguments and the tx file into $TXSIM_CAPTURE.
func fakeAiken(t *testing.T, body string) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	dir := t.TempDir()
	capture := filepath.Join(dir, "capture")
	require.NoError(t, os.Mkdir(capture, 0o755))
	t.Setenv("TXSIM_CAPTURE", capture)

	script := "#!/bin/sh\n" +
		"echo \"$@\" > \"$TXSIM_CAPTURE/args\"\n" +
		"cat \"$3\" > \"$TXSIM_CAPTURE/tx\"\n" +
		body + "\n"
	path := filepath.Join(dir, "aiken")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path, capture
}

func testRequest(network NetworkID) SimulationRequest {
	return SimulationRequest{
		Tx:      []byte{0x84, 0xa0},
		Inputs:  []byte{0x80},
		Outputs: []byte{0x80},
		Network: network,
	}
}

func readCapture(t *testing.T, capture, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(capture, name))
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files left behind")
}

func TestAikenSimulatorSucceeded(t *testing.T) {
	path, capture := fakeAiken(t, `echo '[{"mem": 7295, "cpu": 2296335}, {"mem": 1, "cpu": 2}]'`)
	scratch := t.TempDir()
	simulator := &AikenSimulator{Path: path, ScratchDir: scratch}

	result := simulator.Simulate(context.Background(), testRequest(Testnet))
	require.Equal(t, SimulationSucceeded, result.Status, result.Reason)
	assert.Equal(t, []Budget{{Mem: 7295, CPU: 2296335}, {Mem: 1, CPU: 2}}, result.Budgets)

	args := strings.Fields(readCapture(t, capture, "args"))
	require.Len(t, args, 9)
	assert.Equal(t, []string{"tx", "simulate"}, args[:2])
	assert.Equal(t, []string{"--zero-time", "1655769600000", "--zero-slot", "86400"}, args[5:])
	// Payloads are handed over as hex text
	assert.Equal(t, "84a0", readCapture(t, capture, "tx"))
	assertEmptyDir(t, scratch)
}

func TestAikenSimulatorMainnetFlags(t *testing.T) {
	path, capture := fakeAiken(t, `echo '[]'`)
	simulator := &AikenSimulator{Path: path, ScratchDir: t.TempDir()}

	result := simulator.Simulate(context.Background(), testRequest(Mainnet))
	require.Equal(t, SimulationSucceeded, result.Status, result.Reason)
	assert.Empty(t, result.Budgets)
	assert.Len(t, strings.Fields(readCapture(t, capture, "args")), 5)

	simulator.ZeroTime, simulator.ZeroSlot = 1, 2
	result = simulator.Simulate(context.Background(), testRequest(Mainnet))
	require.Equal(t, SimulationSucceeded, result.Status, result.Reason)
	args := strings.Fields(readCapture(t, capture, "args"))
	assert.Equal(t, []string{"--zero-time", "1", "--zero-slot", "2"}, args[5:])
}

func TestAikenSimulatorFailed(t *testing.T) {
	testDefs := []struct {
		name string
		body string
	}{
		{"exit status", "echo 'script crashed' >&2; exit 1"},
		{"bad output", "echo 'Error: redeemer failed'"},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			path, _ := fakeAiken(t, testDef.body)
			scratch := t.TempDir()
			simulator := &AikenSimulator{Path: path, ScratchDir: scratch}

			result := simulator.Simulate(context.Background(), testRequest(Testnet))
			assert.Equal(t, SimulationFailed, result.Status)
			assert.NotEmpty(t, result.Reason)
			assert.Empty(t, result.Budgets)
			assertEmptyDir(t, scratch)
		})
	}
}

func TestAikenSimulatorMissingBinary(t *testing.T) {
	scratch := t.TempDir()
	simulator := &AikenSimulator{Path: filepath.Join(scratch, "no-such-aiken"), ScratchDir: scratch}

	result := simulator.Simulate(context.Background(), testRequest(Testnet))
	assert.Equal(t, SimulationFailed, result.Status)
	assertEmptyDir(t, scratch)
}

func TestAikenSimulatorCanceled(t *testing.T) {
	path, _ := fakeAiken(t, "sleep 5; echo '[]'")
	scratch := t.TempDir()
	simulator := &AikenSimulator{Path: path, ScratchDir: scratch}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := simulator.Simulate(ctx, testRequest(Testnet))
	assert.Equal(t, SimulationFailed, result.Status)
	assertEmptyDir(t, scratch)
}

func TestSimulationStatusString(t *testing.T) {
	assert.Equal(t, "succeeded", SimulationSucceeded.String())
	assert.Equal(t, "failed", SimulationFailed.String())
}
