// Package server exposes program evaluation over HTTP/3.
//
//	POST /run      body is program text; responds with a RunResponse
//	GET  /healthz  responds "ok"
package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	http3 "github.com/quic-go/quic-go/http3"
	"golang.org/x/sync/errgroup"

	"github.com/plc-lang/plc/internal/cli"
	"github.com/plc-lang/plc/internal/diagnostics"
	"github.com/plc-lang/plc/internal/driver"
	"github.com/plc-lang/plc/internal/position"
)

// MaxProgramSize bounds the request body of /run
const MaxProgramSize = 1 << 20

// RunResponse is the JSON body returned by /run
type RunResponse struct {
	Result string                  `json:"result,omitempty"`
	Output string                  `json:"output"`
	Error  *diagnostics.Diagnostic `json:"error,omitempty"`
}

type handler struct {
	driver    *driver.Driver
	log       *cli.Logger
	semaphore chan struct{}
}

// NewHandler returns the HTTP API backed by d. At most d's job limit
// programs run at once; further requests wait until their context ends.
func NewHandler(d *driver.Driver, log *cli.Logger) http.Handler {
	if log == nil {
		log = cli.NewLoggerTo(nil, false, false)
	}
	h := &handler{
		driver:    d,
		log:       log,
		semaphore: make(chan struct{}, d.Config().JobLimit()),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/run", h.run)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	return mux
}

func (h *handler) run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxProgramSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "program too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read program", http.StatusBadRequest)
		return
	}

	select {
	case h.semaphore <- struct{}{}:
	case <-r.Context().Done():
		http.Error(w, "server busy", http.StatusServiceUnavailable)
		return
	}
	defer func() { <-h.semaphore }()

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "request"
	}
	source := string(body)

	start := time.Now()
	var out bytes.Buffer
	value, err := h.driver.Run(r.Context(), name, source, &out)

	resp := RunResponse{Output: out.String()}
	if err != nil {
		d := diagnostics.FromError(position.NewSourceFile(name, source), driver.Cause(err))
		resp.Error = &d
		h.log.Info("%s %s: %s", r.RemoteAddr, name, d.Header())
	} else {
		resp.Result = value.String()
		h.log.Info("%s %s: %s in %s", r.RemoteAddr, name, resp.Result, time.Since(start).Round(time.Microsecond))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Warn("write response: %v", err)
	}
}

// Server wraps the http3.Server lifecycle
type Server struct {
	srv   *http3.Server
	pc    net.PacketConn
	addr  string
	log   *cli.Logger
	done  chan struct{}
	close func() error
}

// New creates a server bound to addr with the given TLS config and handler
func New(addr string, tlsCfg *tls.Config, h http.Handler, log *cli.Logger) *Server {
	if log == nil {
		log = cli.NewLoggerTo(nil, false, false)
	}
	s := &http3.Server{Addr: addr, TLSConfig: http3.ConfigureTLSConfig(tlsCfg), Handler: h}
	return &Server{srv: s, addr: addr, log: log}
}

// Start begins serving on addr. An addr ending in ":0" binds an ephemeral
// UDP port; the bound address is returned.
func (s *Server) Start() (string, error) {
	var err error
	s.pc, err = net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}
	realAddr := s.pc.LocalAddr().String()
	s.done = make(chan struct{})
	go func() {
		if err := s.srv.Serve(s.pc); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			s.log.Debug("http3 serve: %v", err)
		}
		close(s.done)
	}()
	s.close = func() error {
		err := s.srv.Close()
		_ = s.pc.Close()
		select {
		case <-s.done:
		case <-time.After(time.Second):
		}
		return err
	}
	s.log.Info("serving HTTP/3 on %s", realAddr)
	return realAddr, nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}

// ListenAndServe starts the server and blocks until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	if _, err := s.Start(); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return s.Stop()
	})
	g.Go(func() error {
		select {
		case <-s.done:
			if gctx.Err() != nil {
				return nil
			}
			return errors.New("http3 server stopped unexpectedly")
		case <-gctx.Done():
			return nil
		}
	})
	return g.Wait()
}

// Client returns an http.Client using the HTTP/3 transport
func Client(tlsCfg *tls.Config, timeout time.Duration) *http.Client {
	tr := &http3.Transport{TLSClientConfig: tlsCfg}
	return &http.Client{Transport: tr, Timeout: timeout}
}

// CloseClient closes the HTTP/3 transport of a client created by Client
func CloseClient(c *http.Client) {
	if tr, ok := c.Transport.(*http3.Transport); ok {
		_ = tr.Close()
	}
}
