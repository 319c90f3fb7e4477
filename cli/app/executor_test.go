package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nspcc-dev/rpcprobe/internal/fakenode"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

const sealInterval = 10 * time.Millisecond

// executor represents context for a test instance.
// It can be safely used in multiple tests, but not in parallel.
type executor struct {
	// CLI is a cli application to test.
	CLI *cli.App
	// Node is a fake node to query.
	Node *fakenode.Node
	// Srv serves the Node.
	Srv *httptest.Server
	// Out contains command output.
	Out *bytes.Buffer
	// Err contains command errors.
	Err *bytes.Buffer
	// Dir is a temporary directory for configuration and reports.
	Dir string
}

func newExecutor(t *testing.T) *executor {
	return newExecutorWithConfig(t, fakenode.DefaultConfig())
}

func newExecutorWithConfig(t *testing.T, cfg fakenode.Config) *executor {
	e := &executor{
		CLI: New(),
		Out: bytes.NewBuffer(nil),
		Err: bytes.NewBuffer(nil),
		Dir: t.TempDir(),
	}
	e.CLI.Writer = e.Out
	e.CLI.ErrWriter = e.Err
	e.Node, e.Srv = fakenode.NewTestServer(t, cfg, sealInterval)
	return e
}

// writeConfig writes harness configuration pointing to the fake node,
// extra YAML is appended as is.
func (e *executor) writeConfig(t *testing.T, extra string) string {
	cfg := fmt.Sprintf(`RPC:
  Endpoint: %q
Chain:
  BlockInterval: 20ms
Poll:
  Interval: 10ms
  MaxAttempts: 100
Runner:
  Timeout: 30s
Logger:
  LogPath: %q
Report:
  Path: %q
`, e.Srv.URL, filepath.Join(e.Dir, "log", "rpcprobe.log"), filepath.Join(e.Dir, "reports.db"))
	path := filepath.Join(e.Dir, "rpcprobe.yml")
	require.NoError(t, os.WriteFile(path, []byte(cfg+extra), 0644))
	return path
}

func (e *executor) getNextLine(t *testing.T) string {
	line, err := e.Out.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func (e *executor) checkNextLine(t *testing.T, expected string) {
	line := e.getNextLine(t)
	e.checkLine(t, line, expected)
}

func (e *executor) checkLine(t *testing.T, line, expected string) {
	require.Regexp(t, expected, line)
}

func (e *executor) checkEOF(t *testing.T) {
	_, err := e.Out.ReadString('\n')
	require.True(t, errors.Is(err, io.EOF))
}

func setExitFunc() <-chan int {
	ch := make(chan int, 1)
	cli.OsExiter = func(code int) {
		ch <- code
	}
	return ch
}

func checkExit(t *testing.T, ch <-chan int, code int) {
	select {
	case c := <-ch:
		require.Equal(t, code, c)
	default:
		if code != 0 {
			require.Fail(t, "no exit was called")
		}
	}
}

// RunWithError runs command and checks that is exits with error.
func (e *executor) RunWithError(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.Error(t, e.run(args...))
	checkExit(t, ch, 1)
}

// Run runs command and checks that there were no errors.
func (e *executor) Run(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.NoError(t, e.run(args...))
	checkExit(t, ch, 0)
}

func (e *executor) run(args ...string) error {
	e.Out.Reset()
	e.Err.Reset()
	return e.CLI.Run(args)
}
