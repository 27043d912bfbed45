// Package redispool provides infraprobe integration with *redis.Client.
// Host and port are extracted from the client for the probe target.
package redispool

import (
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/BigKAA/infraprobe/infraprobe"
	"github.com/BigKAA/infraprobe/infraprobe/probes/redisprobe"
)

// FromClient creates an Option that makes the Harness probe Redis targets
// through client. Extra redisprobe options (WithRoundTrip) may be passed.
func FromClient(client *redis.Client, opts ...redisprobe.Option) infraprobe.Option {
	return infraprobe.WithProber(Prober(client, opts...))
}

// Prober returns a pool mode Redis prober bound to client.
func Prober(client *redis.Client, opts ...redisprobe.Option) *redisprobe.Prober {
	allOpts := make([]redisprobe.Option, 0, len(opts)+1)
	allOpts = append(allOpts, redisprobe.WithClient(client))
	allOpts = append(allOpts, opts...)
	return redisprobe.New(allOpts...)
}

// Target describes the server client is connected to.
// Host and port come from client.Options().Addr.
func Target(name string, client *redis.Client) infraprobe.Target {
	addr := client.Options().Addr
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		port = infraprobe.DefaultPorts["redis"]
	}
	return infraprobe.Target{
		Name: name,
		Kind: infraprobe.KindRedis,
		Host: host,
		Port: port,
	}
}
