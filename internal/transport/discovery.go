package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

// AdvertiseServer registers an mDNS service so clients on the same LAN can
// find this server without a hardcoded address, grounded on the
// CollabText agent's startDiscovery (agent/main.go). It blocks until ctx
// is canceled.
func AdvertiseServer(ctx context.Context, serviceName string, port int) error {
	host, _ := os.Hostname()
	server, err := zeroconf.Register(
		fmt.Sprintf("cwse-%s", host),
		serviceName,
		"local.",
		port,
		[]string{"txtv=0"},
		nil,
	)
	if err != nil {
		return fmt.Errorf("discovery: register: %w", err)
	}
	defer server.Shutdown()
	slog.Info("mDNS service registered", "service", serviceName, "port", port)
	<-ctx.Done()
	return nil
}

// DiscoverServer browses for a server advertised with AdvertiseServer and
// returns the first "<host>:<port>" address found, or an error if none
// appears within timeout.
func DiscoverServer(serviceName string, timeout time.Duration) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("discovery: resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 1)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := resolver.Browse(ctx, serviceName, "local.", entries); err != nil {
		return "", fmt.Errorf("discovery: browse: %w", err)
	}

	select {
	case entry := <-entries:
		if len(entry.AddrIPv4) == 0 {
			return "", fmt.Errorf("discovery: entry %s has no IPv4 address", entry.Instance)
		}
		return fmt.Sprintf("%s:%d", entry.AddrIPv4[0], entry.Port), nil
	case <-ctx.Done():
		return "", fmt.Errorf("discovery: no server found within %s", timeout)
	}
}
