// Command etherdreamd emulates an EtherDream network laser DAC: it
// speaks the TCP protocol engine, decodes and queues points, and
// advertises itself on the LAN, without driving any actual laser
// hardware.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/doismellburning/etherdreamd/internal/beacon"
	"github.com/doismellburning/etherdreamd/internal/engine"
	"github.com/doismellburning/etherdreamd/internal/logging"
	"github.com/doismellburning/etherdreamd/internal/metrics"
	"github.com/doismellburning/etherdreamd/internal/pipeline"
	"github.com/doismellburning/etherdreamd/internal/render"
	"github.com/doismellburning/etherdreamd/internal/status"
)

const buildVersion = "0.0.1"

func main() {
	var tcpPort = pflag.Int("tcp-port", engine.DefaultPort, "TCP port for the protocol engine.")
	var udpPort = pflag.Int("udp-port", beacon.DefaultPort, "UDP port for the broadcast beacon.")
	var frameLimit = pflag.Int("frame-limit", pipeline.DefaultFrameLimit, "Maximum queued-but-undecoded Data frames.")
	var pointLimit = pflag.Int("point-limit", pipeline.DefaultPointLimit, "Maximum decoded points held for the renderer.")
	var macStr = pflag.String("mac", "", "48-bit MAC address as a colon-separated hex string, e.g. 02:00:00:00:00:01. Random locally-administered address if unset.")
	var hwRevision = pflag.Uint16("hw-revision", 1, "Emulated hardware revision, broadcast in the beacon.")
	var swRevision = pflag.Uint16("sw-revision", 1, "Emulated software revision, broadcast in the beacon.")
	var maxPointRate = pflag.Uint32("max-point-rate", 100000, "Emulated maximum point rate, broadcast in the beacon.")
	var debug = pflag.Bool("debug", false, "Enable debug-level tracing.")
	var headless = pflag.Bool("headless", true, "Discard decoded points instead of rendering them; the protocol core runs regardless. Only the headless renderer is built, so points are discarded whether or not this is set.")
	var pointSize = pflag.Int("point-size", 1, "Renderer pixel size for a rendered point; unused in headless mode.")
	var fwVersion = pflag.String("fw-version", "v"+buildVersion, "Firmware version string reported by the Version command.")
	var mdns = pflag.Bool("mdns", true, "Also advertise via mDNS/DNS-SD in addition to the raw UDP beacon.")
	var printVersion = pflag.Bool("version", false, "Print the etherdreamd build version and exit.")

	_ = pointSize // renderer-only; carried for a future non-headless renderer.

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "etherdreamd - a software emulator of an EtherDream network laser DAC.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: etherdreamd [options]\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *printVersion {
		fmt.Println(buildVersion)
		os.Exit(0)
	}

	logger := logging.New("etherdreamd", *debug)

	mac, err := parseOrGenerateMAC(*macStr)
	if err != nil {
		logger.Fatal("invalid --mac", "err", err)
	}

	registry := metrics.New()
	store := status.New(logging.New("statusstore", *debug))
	pl := pipeline.New(*frameLimit, *pointLimit, logging.New("pipeline", *debug), registry)

	go pl.Run()
	defer pl.Close()

	rendererLogger := logging.New("render", *debug)
	var renderer render.Renderer = render.NewHeadless(rendererLogger)
	renderStop := make(chan struct{})
	go render.Run(pl, renderer, renderStop)
	defer close(renderStop)
	defer renderer.Close()

	b := beacon.New(beacon.Config{
		MAC:            mac,
		HWRevision:     *hwRevision,
		SWRevision:     *swRevision,
		BufferCapacity: uint16(*pointLimit),
		MaxPointRate:   *maxPointRate,
		Port:           *udpPort,
	}, store, logging.New("beacon", *debug))
	go func() {
		if err := b.Run(); err != nil {
			logger.Warn("beacon stopped", "err", err)
		}
	}()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *mdns {
		go beacon.AnnounceDNSSD(ctx, "etherdreamd", *tcpPort, logging.New("dnssd", *debug))
	}

	eng := engine.New(engine.Config{
		Port:       *tcpPort,
		Version:    *fwVersion,
		FrameLimit: *frameLimit,
		PointLimit: *pointLimit,
		Debug:      *debug,
	}, pl, store, logging.New("engine", *debug), registry)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		cancel()
		b.Close()
		close(renderStop)
		pl.Close()
		os.Exit(0)
	}()

	logger.Info("starting", "tcp_port", *tcpPort, "udp_port", *udpPort, "headless", *headless)
	if err := eng.Serve(); err != nil {
		logger.Fatal("protocol engine stopped", "err", err)
	}
}

// parseOrGenerateMAC parses a colon-separated MAC string, or generates a
// random locally-administered address if s is empty.
func parseOrGenerateMAC(s string) ([6]byte, error) {
	var mac [6]byte

	if s == "" {
		if _, err := rand.Read(mac[:]); err != nil {
			return mac, fmt.Errorf("generating random MAC: %w", err)
		}
		mac[0] = (mac[0] | 0x02) & 0xfe // locally administered, unicast
		return mac, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("MAC %q must have 6 colon-separated octets", s)
	}

	for i, p := range parts {
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return mac, fmt.Errorf("MAC octet %q: %w", p, err)
		}
		mac[i] = byte(b)
	}

	return mac, nil
}
