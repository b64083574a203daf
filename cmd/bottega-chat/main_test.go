package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bottegachat/internal/backend"
)

func isolateConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	isolateConfig(t)
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestSendPrintsNormalizedReply(t *testing.T) {
	srv := httptest.NewServer(backend.NewStubHandler())
	defer srv.Close()

	out, errOut, err := execute(t, "send", "--backend-url", srv.URL, "--log-level", "error", "Book", "a", "table")
	if err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	if strings.Contains(out, "Ai Message") || strings.Contains(out, "=====") {
		t.Fatalf("expected banner stripped, got %q", out)
	}
	if !strings.Contains(out, "> Book a table") {
		t.Fatalf("expected echoed message in reply, got %q", out)
	}
	if !strings.Contains(errOut, "thread_id: ") {
		t.Fatalf("expected thread id on stderr, got %q", errOut)
	}
}

func TestSendKeepsValidThreadID(t *testing.T) {
	var seen backend.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&seen)
		_ = json.NewEncoder(w).Encode(backend.ChatResponse{ThreadID: seen.ThreadID, Messages: "[{\"text\":\"Table booked.\"}]"})
	}))
	defer srv.Close()

	const thread = "0f8fad5b-d9cb-469f-a165-70867728950e"
	out, errOut, err := execute(t, "send", "--backend-url", srv.URL, "--log-level", "error", "--thread-id", thread, "Book")
	if err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	if seen.ThreadID != thread {
		t.Fatalf("expected thread id forwarded, got %q", seen.ThreadID)
	}
	if strings.TrimSpace(out) != "Table booked." {
		t.Fatalf("expected block text, got %q", out)
	}
	if !strings.Contains(errOut, thread) {
		t.Fatalf("expected thread id echoed, got %q", errOut)
	}
}

func TestSendLogsThroughComponentLoggers(t *testing.T) {
	srv := httptest.NewServer(backend.NewStubHandler())
	defer srv.Close()
	logFile := filepath.Join(t.TempDir(), "send.log")

	_, _, err := execute(t, "send", "--backend-url", srv.URL, "--log-level", "debug", "--log-file", logFile, "hello")
	if err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("expected log file, got %v", err)
	}
	logs := string(data)
	for _, want := range []string{
		`"component":"chat"`,
		`"component":"backend"`,
		`"component":"normalize"`,
		`"backend_url":"` + srv.URL + `"`,
		"received chat response",
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected %s in log file, got %s", want, logs)
		}
	}
}

func TestSendRejectsMalformedThreadID(t *testing.T) {
	_, _, err := execute(t, "send", "--log-level", "error", "--thread-id", "not-a-thread", "hi")
	if err == nil {
		t.Fatalf("expected malformed thread id to fail")
	}
}

func TestSendRejectsMalformedThreadIDFromEnvAndFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("backend must not be called with a malformed thread id")
	}))
	defer srv.Close()

	t.Run("env", func(t *testing.T) {
		t.Setenv("BOTTEGA_THREAD_ID", "resume-me")
		_, _, err := execute(t, "send", "--backend-url", srv.URL, "--log-level", "error", "hi")
		if err == nil || !strings.Contains(err.Error(), "resume-me") {
			t.Fatalf("expected env thread id rejected, got %v", err)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("thread_id: resume-me\n"), 0o600); err != nil {
			t.Fatalf("expected config file, got %v", err)
		}
		_, _, err := execute(t, "send", "--config", path, "--backend-url", srv.URL, "--log-level", "error", "hi")
		if err == nil || !strings.Contains(err.Error(), "resume-me") {
			t.Fatalf("expected file thread id rejected, got %v", err)
		}
	})
}

func TestSendFailsOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, _, err := execute(t, "send", "--backend-url", url, "--log-level", "error", "hello")
	if err == nil {
		t.Fatalf("expected send to fail against a closed backend")
	}
	if !backend.IsNetworkFailure(err) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if out != "" {
		t.Fatalf("expected no reply output, got %q", out)
	}
}

func TestSendRejectsBlankMessage(t *testing.T) {
	_, _, err := execute(t, "send", "--log-level", "error", "  ")
	if err == nil {
		t.Fatalf("expected blank message to fail")
	}
}

func TestConfigShow(t *testing.T) {
	out, _, err := execute(t, "config", "show", "--log-level", "error", "--backend-url", "https://bottega.example.com/", "--timeout", "15s")
	if err != nil {
		t.Fatalf("expected config show to succeed, got %v", err)
	}
	for _, want := range []string{"backend_url: https://bottega.example.com\n", "chat_path: /chat", "request_timeout: 15s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in config output, got %q", want, out)
		}
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version", "--log-level", "error")
	if err != nil {
		t.Fatalf("expected version to succeed, got %v", err)
	}
	if !strings.HasPrefix(out, "bottega-chat ") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestRunStubServerShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("expected listener, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runStubServer(ctx, ln, backend.NewStubHandler())
	}()

	client := backend.NewClient("http://" + ln.Addr().String())
	resp, err := client.Chat(context.Background(), backend.ChatRequest{Message: "ping"})
	if err != nil {
		t.Fatalf("expected stub reply, got %v", err)
	}
	if resp.ThreadID == "" {
		t.Fatalf("expected stub to assign a thread id")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("stub server did not shut down")
	}
}
