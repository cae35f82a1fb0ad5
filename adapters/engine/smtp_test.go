package engine_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	adapter "github.com/artpar/ritan/adapters/engine"
	"github.com/artpar/ritan/domain/engine"
)

// fakeSMTP accepts one message and records the transcript.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	rcpt string
	data string
	done chan struct{}
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeSMTP{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { conn.Write([]byte(line + "\r\n")) }
	reply("220 localhost ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			s.mu.Lock()
			s.rcpt = strings.TrimSpace(line[len("RCPT TO:"):])
			s.mu.Unlock()
			reply("250 OK")
		case cmd == "DATA":
			reply("354 go ahead")
			var body strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			s.mu.Lock()
			s.data = body.String()
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func TestSMTP_Delivers(t *testing.T) {
	srv := newFakeSMTP(t)
	eng, err := adapter.NewSMTP(adapter.SMTPConfig{
		Host:    "127.0.0.1",
		Port:    srv.port(),
		From:    "noreply@example.com",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewSMTP() error = %v", err)
	}

	req := decode(t, engine.KindMail, `{"to":"dev@example.com","subject":"Hello","html":"<p>hi</p>"}`)
	res, err := eng.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Status != 200 {
		t.Errorf("status = %d, want 200", res.Status)
	}

	<-srv.done
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if !strings.Contains(srv.rcpt, "dev@example.com") {
		t.Errorf("rcpt = %q", srv.rcpt)
	}
	for _, want := range []string{"To: dev@example.com", "Subject: Hello", "<noreply@example.com>", "<p>hi</p>", "text/html"} {
		if !strings.Contains(srv.data, want) {
			t.Errorf("message missing %q:\n%s", want, srv.data)
		}
	}
}

func TestSMTP_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	eng, _ := adapter.NewSMTP(adapter.SMTPConfig{Host: "127.0.0.1", Port: port, From: "a@example.com", Timeout: time.Second})
	req := decode(t, engine.KindMail, `{"to":"dev@example.com","subject":"x","html":"y"}`)
	if _, err := eng.Invoke(context.Background(), req); err == nil {
		t.Error("expected dial error")
	}
}

func TestSMTP_RejectsOtherKinds(t *testing.T) {
	eng, _ := adapter.NewSMTP(adapter.SMTPConfig{Host: "localhost", From: "a@example.com"})
	if _, err := eng.Invoke(context.Background(), decode(t, engine.KindQR, `{"text":"x"}`)); err == nil {
		t.Error("expected kind mismatch error")
	}
}

func TestNewSMTP_RequiresHostAndFrom(t *testing.T) {
	for _, cfg := range []adapter.SMTPConfig{{From: "a@example.com"}, {Host: "localhost"}} {
		if _, err := adapter.NewSMTP(cfg); err == nil {
			t.Errorf("NewSMTP(%+v) expected error", cfg)
		}
	}
}
