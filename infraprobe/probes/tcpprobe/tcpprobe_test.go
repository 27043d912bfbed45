package tcpprobe

import (
	"context"
	"net"
	"testing"

	"github.com/BigKAA/infraprobe/infraprobe"
)

func TestProber_Probe_Success(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = conn.Close()
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	target := infraprobe.Target{Name: "vault-port", Kind: infraprobe.KindTCP, Host: host, Port: port}

	if _, err := New().Probe(context.Background(), target); err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
}

func TestProber_Probe_ConnectionRefused(t *testing.T) {
	target := infraprobe.Target{Name: "closed", Kind: infraprobe.KindTCP, Host: "127.0.0.1", Port: "1"}

	if _, err := New().Probe(context.Background(), target); err == nil {
		t.Error("expected error for closed port, got nil")
	}
}

func TestProber_Probe_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := infraprobe.Target{Name: "any", Kind: infraprobe.KindTCP, Host: "127.0.0.1", Port: "8200"}
	if _, err := New().Probe(ctx, target); err == nil {
		t.Error("expected error for canceled context, got nil")
	}
}

func TestProber_Kind(t *testing.T) {
	if got := New().Kind(); got != infraprobe.KindTCP {
		t.Errorf("Kind() = %q, expected %q", got, infraprobe.KindTCP)
	}
}
