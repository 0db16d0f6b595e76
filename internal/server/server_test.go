package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitsmart/internal/config"
	"gitsmart/internal/events"
	"gitsmart/internal/faults"
	"gitsmart/internal/git"
	"gitsmart/internal/session"
	"gitsmart/internal/tools"
)

func initTestRepo(t *testing.T) *git.Repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", "README.md")
	run("commit", "-m", "initial")

	repo, err := git.Open(dir)
	require.NoError(t, err)
	return repo
}

type fixture struct {
	server      *Server
	registry    *tools.Registry
	broadcaster *events.Broadcaster
	executor    *git.Executor
	ts          *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := initTestRepo(t)
	executor := git.NewExecutor(repo, 100*time.Millisecond)
	sess := session.New(repo, executor)
	broadcaster := events.NewBroadcaster()
	registry := tools.NewRegistry()

	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 0}
	srv := New(cfg, registry, broadcaster, sess)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		broadcaster.Close()
	})
	return &fixture{server: srv, registry: registry, broadcaster: broadcaster, executor: executor, ts: ts}
}

func (f *fixture) rpc(t *testing.T, body string) rpcResponse {
	t.Helper()
	resp, err := http.Post(f.ts.URL+"/rpc", "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRPCUnknownTool(t *testing.T) {
	f := newFixture(t)
	out := f.rpc(t, `{"id": 1, "method": "tools/call", "params": {"name": "no_such_tool"}}`)
	require.NotNil(t, out.Error)
	require.Equal(t, faults.CodeUnknownTool, out.Error.Code)
}

func TestRPCUnknownMethod(t *testing.T) {
	f := newFixture(t)
	out := f.rpc(t, `{"id": 2, "method": "bogus/method"}`)
	require.NotNil(t, out.Error)
	require.Equal(t, faults.CodeUnknownTool, out.Error.Code)
}

func TestRPCParseError(t *testing.T) {
	f := newFixture(t)
	out := f.rpc(t, `{not json`)
	require.NotNil(t, out.Error)
	require.Equal(t, faults.CodeParse, out.Error.Code)
}

func TestRPCValidationCode(t *testing.T) {
	f := newFixture(t)
	f.registry.MustRegister(&tools.Tool{
		Name: "needy",
		Schema: tools.Schema{
			Required:   []string{"files"},
			Properties: map[string]tools.Property{"files": {Type: "array"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	})

	out := f.rpc(t, `{"id": 3, "method": "tools/call", "params": {"name": "needy", "arguments": {}}}`)
	require.NotNil(t, out.Error)
	require.Equal(t, faults.CodeValidation, out.Error.Code)
}

func TestRPCResult(t *testing.T) {
	f := newFixture(t)
	f.registry.MustRegister(&tools.Tool{
		Name:    "ping",
		Execute: func(ctx context.Context, args map[string]any) (any, error) { return map[string]any{"pong": true}, nil },
	})

	out := f.rpc(t, `{"id": 4, "method": "tools/call", "params": {"name": "ping", "arguments": {}}}`)
	require.Nil(t, out.Error)
	result, ok := out.Result.(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, result["pong"])
}

// TestBusySerialization verifies a second mutating call is rejected with the
// busy code while the lock is held.
func TestBusySerialization(t *testing.T) {
	f := newFixture(t)

	held := make(chan struct{})
	release := make(chan struct{})
	f.registry.MustRegister(&tools.Tool{
		Name: "mutate",
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, f.executor.WithLock(ctx, func(tx *git.Tx) error {
				close(held)
				<-release
				return nil
			})
		},
	})

	done := make(chan rpcResponse, 1)
	go func() {
		done <- f.rpc(t, `{"id": 10, "method": "tools/call", "params": {"name": "mutate", "arguments": {}}}`)
	}()
	<-held

	out := f.rpc(t, `{"id": 11, "method": "tools/call", "params": {"name": "mutate", "arguments": {}}}`)
	require.NotNil(t, out.Error)
	require.Equal(t, faults.CodeBusy, out.Error.Code)

	close(release)
	first := <-done
	require.Nil(t, first.Error)
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, true, status["enabled"])
	require.NotEmpty(t, status["repository_path"])
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.ts.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Wait for the subscriber to attach before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for f.broadcaster.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.broadcaster.Publish(events.TypeStaged, map[string]int{"files": 1})

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "event: ") {
			eventLine = line
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = line
			break
		}
	}
	require.Equal(t, "event: staged", eventLine)

	var ev events.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &ev))
	require.Equal(t, events.TypeStaged, ev.Type)
	require.NotEmpty(t, ev.ID)
}

// TestDisconnectDoesNotAffectOthers verifies a dropped stream only stops
// delivery to that subscriber.
func TestDisconnectDoesNotAffectOthers(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.ts.URL + "/events")
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for f.broadcaster.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp.Body.Close()

	// Direct subscription still receives events after the HTTP client left.
	_, ch := f.broadcaster.Subscribe()
	f.broadcaster.Publish(events.TypeCommitted, nil)
	select {
	case ev := <-ch:
		require.Equal(t, events.TypeCommitted, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}
