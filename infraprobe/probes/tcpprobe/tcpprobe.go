// Package tcpprobe provides the TCP socket prober for infraprobe.
//
// Import this package to register the TCP prober factory:
//
//	import _ "github.com/BigKAA/infraprobe/infraprobe/probes/tcpprobe"
package tcpprobe

import (
	"context"
	"fmt"
	"net"

	"github.com/BigKAA/infraprobe/infraprobe"
)

func init() {
	infraprobe.RegisterProberFactory(infraprobe.KindTCP, func() infraprobe.Prober { return New() })
}

// Prober checks that a TCP port accepts connections.
// No data is sent or received.
type Prober struct{}

// New creates a new TCP prober.
func New() *Prober {
	return &Prober{}
}

// Probe establishes a TCP connection to the target and immediately closes it.
func (p *Prober) Probe(ctx context.Context, target infraprobe.Target) (infraprobe.Result, error) {
	addr := target.Address()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return infraprobe.Result{}, fmt.Errorf("tcp dial %s: %w", addr, err)
	}
	_ = conn.Close()

	return infraprobe.Result{}, nil
}

// Kind returns the service kind for this prober.
func (p *Prober) Kind() infraprobe.ServiceKind {
	return infraprobe.KindTCP
}
