package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/roomchat/internal/chat"
	"github.com/tOgg1/roomchat/internal/config"
	"github.com/tOgg1/roomchat/internal/devserver"
	"github.com/tOgg1/roomchat/internal/logging"
	"github.com/tOgg1/roomchat/internal/testutil"
	"github.com/tOgg1/roomchat/internal/transcript"
)

// isolate points every config and data path at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("ROOMCHAT_GLOBAL_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("ROOMCHAT_GLOBAL_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("ROOMCHAT_IDENTITY_NAME", "")
	t.Setenv("ROOMCHAT_IDENTITY_TOKEN", "")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	closeLogSink()
	return out.String(), errOut.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %v", err)
	return exitErr.Code
}

func startBackend(t *testing.T) (*devserver.Server, *httptest.Server) {
	t.Helper()
	testutil.SkipIfNoNetwork(t)
	s := devserver.New(devserver.Config{Tokens: map[string]string{"tok": "alice"}})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd("dev")

	for _, name := range []string{"join", "tail", "history", "send", "transcript", "serve", "login", "logout", "context"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, found.Name())
	}

	found, _, err := root.Find([]string{"log"})
	require.NoError(t, err)
	require.Equal(t, "history", found.Name())
}

func TestLoginContextLogout(t *testing.T) {
	dir := isolate(t)

	out, _, err := runCLI(t, "login", "alice", "--token", "s3cret")
	require.NoError(t, err)
	require.Contains(t, out, "logged in as alice")

	path := filepath.Join(dir, "config", "context.yaml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	stored, err := config.NewContextStore(path).Load()
	require.NoError(t, err)
	require.Equal(t, "alice", stored.Identity)
	require.Equal(t, "s3cret", stored.Token)

	out, _, err = runCLI(t, "context")
	require.NoError(t, err)
	require.Contains(t, out, "identity:alice token:set")
	require.NotContains(t, out, "s3cret")

	out, _, err = runCLI(t, "context", "--json")
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Equal(t, "alice", payload["identity"])
	require.Equal(t, true, payload["has_credential"])

	_, _, err = runCLI(t, "logout")
	require.NoError(t, err)
	out, _, err = runCLI(t, "context")
	require.NoError(t, err)
	require.Contains(t, out, "(no context set)")
}

func TestLoginRequiresToken(t *testing.T) {
	isolate(t)
	_, _, err := runCLI(t, "login", "alice")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(t, err))
}

func TestLoginRejectsAlteredIdentity(t *testing.T) {
	isolate(t)
	_, _, err := runCLI(t, "login", "<b>x</b>", "--token", "tok")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(t, err))
	require.ErrorContains(t, err, "invalid identity")

	out, _, err := runCLI(t, "context")
	require.NoError(t, err)
	require.Contains(t, out, "(no context set)")
}

func TestIdentityFlagRejectedBeforeConnecting(t *testing.T) {
	isolate(t)
	_, _, err := runCLI(t, "history", "7", "--identity", "bob & co", "--token", "tok", "--base-url", "http://127.0.0.1:1")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(t, err))
	require.ErrorIs(t, err, chat.ErrInvalidIdentity)
}

func TestInvalidBaseURLIsConfigError(t *testing.T) {
	isolate(t)
	_, _, err := runCLI(t, "context", "--base-url", "ftp://example.com")
	require.Error(t, err)
	require.Equal(t, ExitCodeConfig, exitCode(t, err))
}

func TestHistoryCommand(t *testing.T) {
	isolate(t)
	backend, ts := startBackend(t)
	backend.Post("7", "bob", "first")
	backend.Post("7", "alice", "second")

	out, _, err := runCLI(t, "history", "7", "--base-url", ts.URL, "--identity", "alice", "--token", "tok", "--json")
	require.NoError(t, err)

	var records []messageRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	require.Equal(t, "bob", records[0].Sender)
	require.False(t, records[0].Own)
	require.Equal(t, "second", records[1].Content)
	require.True(t, records[1].Own)
	require.Equal(t, "history", records[1].Source)

	out, _, err = runCLI(t, "history", "7", "--base-url", ts.URL, "--token", "tok", "-n", "1")
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(out, "\n"))
	require.Contains(t, out, "alice: second")
}

func TestHistoryCommandWithoutCredential(t *testing.T) {
	isolate(t)
	_, ts := startBackend(t)

	_, _, err := runCLI(t, "history", "7", "--base-url", ts.URL)
	require.Error(t, err)
	require.Equal(t, ExitCodeAuth, exitCode(t, err))
	require.ErrorIs(t, err, chat.ErrUnauthenticated)

	_, _, err = runCLI(t, "history", "7", "--base-url", ts.URL, "--token", "wrong")
	require.Error(t, err)
	require.Equal(t, ExitCodeAuth, exitCode(t, err))
}

func TestSendCommandDelivers(t *testing.T) {
	isolate(t)
	backend, ts := startBackend(t)

	out, _, err := runCLI(t, "send", "7", "hello", "there", "--base-url", ts.URL, "--identity", "alice", "--token", "tok")
	require.NoError(t, err)
	require.Contains(t, out, "sent to #7 as alice")

	history := backend.History("7")
	require.Len(t, history, 1)
	require.Equal(t, "alice", history[0].Sender)
	require.Equal(t, "hello there", history[0].Content)
}

func TestSendCommandRequiresIdentity(t *testing.T) {
	isolate(t)
	_, ts := startBackend(t)

	_, _, err := runCLI(t, "send", "7", "hello", "--base-url", ts.URL)
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(t, err))
}

func TestTailPrintsHistoryThenLive(t *testing.T) {
	jsonOutput, jsonlOutput, quiet = false, false, false
	backend, ts := startBackend(t)
	backend.Post("7", "bob", "older")
	backend.Post("7", "bob", "newer")

	client := chat.NewClient(chat.Options{
		Identity: chat.Identity{Name: "alice", Token: "tok"},
		History: chat.NewHTTPHistoryLoader(chat.HTTPHistoryConfig{
			URLFor: func(roomID string) string { return ts.URL + "/api/chat/rooms/" + roomID + "/messages/" },
			Token:  "tok",
			Client: ts.Client(),
		}),
		LiveURL: func(roomID string) string {
			return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat/" + roomID + "/"
		},
	})
	t.Cleanup(func() { _ = client.Leave() })

	session, err := client.Enter(context.Background(), "7")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return session.History().State == chat.HistoryLoaded && backend.Peers("7") == 1
	}, 2*time.Second, 5*time.Millisecond)

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		cfg := DefaultTailConfig()
		cfg.PollInterval = 10 * time.Millisecond
		cfg.Count = 1
		done <- newMessageTail(session, &out, nil, cfg).Stream(context.Background())
	}()

	backend.Post("7", "carol", "live one")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tail did not stop after one live message")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasSuffix(lines[0], "bob: older"))
	require.True(t, strings.HasSuffix(lines[1], "bob: newer"))
	require.True(t, strings.HasSuffix(lines[2], "carol: live one"))
}

func TestTailCommandStopsAfterCount(t *testing.T) {
	isolate(t)
	backend, ts := startBackend(t)
	backend.Post("7", "bob", "older")

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, _, err := runCLI(t, "tail", "7", "-n", "1", "--base-url", ts.URL, "--identity", "alice", "--token", "tok")
		done <- result{out: out, err: err}
	}()

	require.Eventually(t, func() bool { return backend.Peers("7") == 1 }, 2*time.Second, 5*time.Millisecond)
	backend.Post("7", "carol", "live one")

	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.Contains(t, res.out, "bob: older")
		require.Contains(t, res.out, "carol: live one")
	case <-time.After(3 * time.Second):
		t.Fatal("tail did not exit after one live message")
	}
}

func TestTranscriptCommand(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "archive.db")
	t.Setenv("ROOMCHAT_TRANSCRIPT_PATH", path)

	_, _, err := runCLI(t, "transcript", "7")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no transcript")

	archive, err := transcript.Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, archive.Record(ctx, "7", chat.ChatMessage{Sender: "bob", Content: "kept\nlocally"}))
	require.NoError(t, archive.Record(ctx, "9", chat.ChatMessage{Sender: "carol", Content: "other room"}))
	require.NoError(t, archive.Close())

	out, _, err := runCLI(t, "transcript", "7")
	require.NoError(t, err)
	require.Contains(t, out, "SENDER")
	require.Contains(t, out, "kept locally")
	require.NotContains(t, out, "other room")

	out, _, err = runCLI(t, "transcript")
	require.NoError(t, err)
	require.Contains(t, out, "7")
	require.Contains(t, out, "9")
}

func TestResolveIdentityPrecedence(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Identity = config.IdentityConfig{Name: "from-config", Token: "cfg-token"}

	identityFlag, tokenFlag = "", ""
	t.Cleanup(func() { identityFlag, tokenFlag = "", "" })

	id := resolveIdentity(cfg, &config.Context{})
	require.Equal(t, chat.Identity{Name: "from-config", Token: "cfg-token"}, id)

	id = resolveIdentity(cfg, &config.Context{Identity: "alice", Token: "login-token"})
	require.Equal(t, chat.Identity{Name: "alice", Token: "login-token"}, id)

	identityFlag, tokenFlag = "bob", "flag-token"
	id = resolveIdentity(cfg, &config.Context{Identity: "alice", Token: "login-token"})
	require.Equal(t, chat.Identity{Name: "bob", Token: "flag-token"}, id)
}

func TestChatOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Reconnect.Enabled = true
	cfg.Chat.OptimisticEcho = true

	opts := chatOptions(cfg, chat.Identity{Name: "alice", Token: "tok"})
	require.Equal(t, "ws://127.0.0.1:8000/ws/chat/42/", opts.LiveURL("42"))
	require.True(t, opts.Reconnect.Enabled)
	require.Equal(t, 5, opts.Reconnect.MaxAttempts)
	require.True(t, opts.OptimisticEcho)
	require.NotNil(t, opts.History)
	require.Nil(t, opts.Recorder)
}

func TestTerminalSafe(t *testing.T) {
	require.Equal(t, "[31mred", terminalSafe("\x1b[31mred"))
	require.Equal(t, "two\n  lines", terminalSafe("two\nlines"))
	require.Equal(t, "kept locally", oneLine("kept\nlocally"))
}

func TestInitAppAttachesCommandLogger(t *testing.T) {
	isolate(t)
	root := newRootCmd("test")
	cmd, _, err := root.Find([]string{"history"})
	require.NoError(t, err)
	cmd.SetContext(context.Background())

	require.NoError(t, initApp(cmd, nil))
	t.Cleanup(closeLogSink)

	var buf bytes.Buffer
	logger := logging.FromContext(cmd.Context()).Output(&buf)
	logger.Warn().Msg("from command")
	require.Contains(t, buf.String(), `"command":"history"`)
	require.Contains(t, buf.String(), `"component":"cli"`)
}

func TestOpenRecorderCreatesDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Global.DataDir = filepath.Join(dir, "fresh", "data")
	cfg.Global.ConfigDir = filepath.Join(dir, "fresh", "config")
	cfg.Transcript.Enabled = true

	recorder, closer, err := openRecorder(cfg)
	require.NoError(t, err)
	require.NotNil(t, recorder)
	t.Cleanup(func() { _ = closer.Close() })

	_, err = os.Stat(cfg.TranscriptPath())
	require.NoError(t, err)
	_, err = os.Stat(cfg.Global.ConfigDir)
	require.NoError(t, err)

	cfg.Transcript.Enabled = false
	recorder, closer, err = openRecorder(cfg)
	require.NoError(t, err)
	require.Nil(t, recorder)
	require.NoError(t, closer.Close())
}
