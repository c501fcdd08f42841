package beacon

import (
	"context"

	"github.com/brutella/dnssd"

	"github.com/charmbracelet/log"
)

// DNSSDServiceType is the mDNS/DNS-SD service type advertised alongside
// the raw UDP beacon, so LAN discovery tools that browse Bonjour/Avahi
// services (rather than sniffing broadcast traffic) can find this DAC.
//
// This is additive: it carries only a name and a port, never the
// 36-byte status payload, so it can never substitute for the raw
// broadcast beacon.
const DNSSDServiceType = "_etherdream._udp"

// AnnounceDNSSD registers an mDNS/DNS-SD responder for name on tcpPort
// and blocks serving it until ctx is canceled. Run it in its own
// goroutine; a failure to announce is logged and does not affect the
// raw beacon or the protocol engine.
func AnnounceDNSSD(ctx context.Context, name string, tcpPort int, logger *log.Logger) {
	cfg := dnssd.Config{
		Name: name,
		Type: DNSSDServiceType,
		Port: tcpPort,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		if logger != nil {
			logger.Warn("dnssd: failed to create service", "err", err)
		}
		return
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		if logger != nil {
			logger.Warn("dnssd: failed to create responder", "err", err)
		}
		return
	}

	if _, err := responder.Add(service); err != nil {
		if logger != nil {
			logger.Warn("dnssd: failed to add service", "err", err)
		}
		return
	}

	if err := responder.Respond(ctx); err != nil && ctx.Err() == nil && logger != nil {
		logger.Warn("dnssd: responder stopped", "err", err)
	}
}
