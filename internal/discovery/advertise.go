package discovery

import (
	"fmt"
	"os"
	"sort"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/arrayacq/internal/logging"
)

// Advertiser publishes a listening server over mDNS.
type Advertiser struct {
	// Instance is the service instance name. Empty means "arrayacq-<hostname>".
	Instance string

	// Text is published as TXT records.
	Text map[string]string
}

// Advertise registers the service on port and returns a function that
// withdraws it.
func (a *Advertiser) Advertise(port int) (func(), error) {
	instance := a.Instance
	if instance == "" {
		host, _ := os.Hostname()
		instance = "arrayacq-" + host
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, textRecords(a.Text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("mDNS service registered",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)

	return func() {
		server.Shutdown()
		logging.Info("mDNS service withdrawn", zap.String("instance", instance))
	}, nil
}

// textRecords renders metadata as sorted "key=value" records.
func textRecords(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
