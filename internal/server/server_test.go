package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plc-lang/plc/internal/driver"
	"github.com/plc-lang/plc/internal/errors"
)

func post(t *testing.T, h http.Handler, target, body string) (*http.Response, RunResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
	resp := rec.Result()
	var out RunResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, out
}

func TestRunHandler(t *testing.T) {
	h := NewHandler(driver.New(nil, nil), nil)

	t.Run("success", func(t *testing.T) {
		resp, out := post(t, h, "/run", `DEF main(): Integer DO print("hi"); RETURN 1 + 2; END`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if out.Result != "3" || out.Output != "hi\n" || out.Error != nil {
			t.Errorf("response = %+v", out)
		}
	})

	t.Run("runtime error keeps output", func(t *testing.T) {
		_, out := post(t, h, "/run?name=div.plc", "DEF main(): Integer DO\n  print(1);\n  RETURN 1 / 0;\nEND")
		if out.Output != "1\n" || out.Result != "" {
			t.Errorf("response = %+v", out)
		}
		e := out.Error
		if e == nil {
			t.Fatal("missing error")
		}
		if e.Category != errors.CategoryRuntime || e.Code != errors.CodeDivisionByZero {
			t.Errorf("error = %+v", e)
		}
		if e.Line != 3 || e.Column != 12 || e.Offset != 46 {
			t.Errorf("error position = %d:%d (offset %d), want 3:12 (offset 46)", e.Line, e.Column, e.Offset)
		}
	})

	t.Run("offsets count characters", func(t *testing.T) {
		_, out := post(t, h, "/run", `DEF main(): Integer DO print("é"); RETURN 1 / 0; END`)
		if e := out.Error; e == nil || e.Offset != 44 || e.Column != 45 {
			t.Errorf("error = %+v, want offset 44 at column 45", e)
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		_, out := post(t, h, "/run", "LET x = 1;")
		if out.Error == nil || out.Error.Category != errors.CategorySyntax || out.Error.Column != 7 {
			t.Errorf("response = %+v", out)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run", nil))
		if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
			t.Errorf("GET /run = %d, Allow %q", rec.Code, rec.Header().Get("Allow"))
		}
	})

	t.Run("program too large", func(t *testing.T) {
		resp, _ := post(t, h, "/run", strings.Repeat(" ", MaxProgramSize+1))
		if resp.StatusCode != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", resp.StatusCode)
		}
	})

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
			t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
		}
	})
}

func TestTLSConfigFor(t *testing.T) {
	cfg, err := TLSConfigFor("127.0.0.1:0", "", "")
	if err != nil {
		t.Fatalf("TLSConfigFor: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("got %d certificates", len(cfg.Certificates))
	}

	dir := t.TempDir()
	certPath, keyPath := filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")
	if err := WritePEM(&cfg.Certificates[0], certPath, keyPath); err != nil {
		t.Fatalf("WritePEM: %v", err)
	}
	loaded, err := TLSConfigFor(":4433", certPath, keyPath)
	if err != nil {
		t.Fatalf("TLSConfigFor with files: %v", err)
	}
	if len(loaded.Certificates) != 1 {
		t.Errorf("loaded %d certificates", len(loaded.Certificates))
	}

	if _, err := TLSConfigFor(":4433", filepath.Join(dir, "absent.pem"), keyPath); err == nil {
		t.Error("missing certificate file accepted")
	}
	if err := WritePEM(nil, certPath, keyPath); err == nil {
		t.Error("WritePEM accepted a nil certificate")
	}
}

func TestHTTP3Loopback(t *testing.T) {
	srvTLS, err := GenerateSelfSignedTLS([]string{"127.0.0.1"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	s := New("127.0.0.1:0", srvTLS, NewHandler(driver.New(nil, nil), nil), nil)
	addr, err := s.Start()
	if err != nil {
		t.Skip("http3 not supported here:", err)
	}
	defer s.Stop()

	client := Client(&tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS13}, 2*time.Second)
	defer CloseClient(client)

	resp, err := client.Post("https://"+addr+"/run", "text/plain",
		strings.NewReader("DEF main(): Integer DO RETURN 6 * 7; END"))
	if err != nil {
		t.Skip("http3 dial failed:", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	var out RunResponse
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("decode %q: %v", b, err)
	}
	if out.Result != "42" {
		t.Fatalf("unexpected: %q", b)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srvTLS, err := GenerateSelfSignedTLS([]string{"127.0.0.1"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	s := New("127.0.0.1:0", srvTLS, http.NotFoundHandler(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil && strings.Contains(err.Error(), "udp") {
			t.Skip("udp not available:", err)
		}
		if err != nil {
			t.Errorf("ListenAndServe() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}
