// Package ssdp answers UPnP discovery searches so DVR clients can find
// the tuner without manual configuration. Clients multicast an M-SEARCH
// to 239.255.255.250:1900 and expect a unicast response pointing at the
// device description XML served by the HTTP layer.
package ssdp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
)

// multicastGroup is the well-known SSDP discovery address.
var multicastGroup = net.IPv4(239, 255, 255, 250)

const (
	defaultAddr        = ":1900"
	readDeadline       = 1 * time.Second
	responseTTLSeconds = 300
)

// searchTargets are the ST values worth answering. Plex and other DVR
// frontends search for MediaServer or ssdp:all when scanning for tuners.
var searchTargets = []string{
	"ssdp:all",
	"upnp:rootdevice",
	"urn:schemas-upnp-org:device:MediaServer:1",
	"urn:schemas-upnp-org:device:Basic:1",
}

// Responder listens on the SSDP port and answers matching M-SEARCH
// requests with the device description URL.
type Responder struct {
	deviceID     string
	friendlyName string
	deviceXMLURL string
	addr         string
	logger       *slog.Logger

	mu     sync.Mutex
	pc     net.PacketConn
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewResponder creates a responder advertising baseURL's /device.xml.
func NewResponder(deviceID, friendlyName, baseURL string) *Responder {
	return &Responder{
		deviceID:     deviceID,
		friendlyName: friendlyName,
		deviceXMLURL: deviceXMLURL(baseURL),
		addr:         defaultAddr,
		logger:       slog.Default(),
	}
}

// WithLogger sets the logger for the responder.
func (r *Responder) WithLogger(logger *slog.Logger) *Responder {
	r.logger = logger.With("component", "ssdp")
	return r
}

// WithAddr overrides the UDP listen address.
func (r *Responder) WithAddr(addr string) *Responder {
	r.addr = addr
	return r
}

// Start begins answering discovery searches. It fails when the device
// description URL cannot be derived or the port is taken; a failed
// multicast group join is only logged, unicast searches still work.
func (r *Responder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pc != nil {
		return fmt.Errorf("ssdp responder already started")
	}
	if r.deviceXMLURL == "" {
		return fmt.Errorf("ssdp responder needs a reachable base URL")
	}

	pc, err := net.ListenPacket("udp4", r.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", r.addr, err)
	}

	r.joinMulticastGroups(pc)

	r.pc = pc
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.serve(r.ctx, pc)

	r.logger.Info("ssdp responder started",
		"addr", pc.LocalAddr().String(),
		"device", r.friendlyName,
		"location", r.deviceXMLURL)
	return nil
}

// Stop shuts the responder down and waits for the read loop to exit.
func (r *Responder) Stop() {
	r.mu.Lock()
	if r.pc == nil {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.pc.Close()
	r.pc = nil
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("ssdp responder stopped")
}

// LocalAddr reports the bound address, nil before Start.
func (r *Responder) LocalAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pc == nil {
		return nil
	}
	return r.pc.LocalAddr()
}

// joinMulticastGroups subscribes to the SSDP group on every up,
// multicast-capable interface.
func (r *Responder) joinMulticastGroups(pc net.PacketConn) {
	conn := ipv4.NewPacketConn(pc)
	group := &net.UDPAddr{IP: multicastGroup}

	ifaces, err := net.Interfaces()
	if err != nil {
		r.logger.Warn("listing network interfaces", "error", err)
		return
	}

	joined := 0
	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := conn.JoinGroup(iface, group); err != nil {
			r.logger.Debug("joining multicast group",
				"interface", iface.Name, "error", err)
			continue
		}
		joined++
	}

	if joined == 0 {
		r.logger.Warn("no multicast group joined, answering unicast searches only")
	}
}

func (r *Responder) serve(ctx context.Context, pc net.PacketConn) {
	defer r.wg.Done()

	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pc.SetReadDeadline(time.Now().Add(readDeadline))
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			r.logger.Warn("reading ssdp packet", "error", err)
			continue
		}

		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}

		msg := string(buf[:n])
		if !isMatchingSearch(msg) {
			continue
		}

		if _, err := pc.WriteTo([]byte(r.searchResponse()), udpAddr); err != nil {
			r.logger.Warn("answering search", "from", udpAddr.String(), "error", err)
			continue
		}
		r.logger.Debug("answered search", "from", udpAddr.String())
	}
}

// isMatchingSearch reports whether msg is an M-SEARCH for a target we
// advertise.
func isMatchingSearch(msg string) bool {
	if !strings.Contains(msg, "M-SEARCH") {
		return false
	}
	for _, st := range searchTargets {
		if strings.Contains(msg, st) {
			return true
		}
	}
	return false
}

func (r *Responder) searchResponse() string {
	return fmt.Sprintf(
		"HTTP/1.1 200 OK\r\n"+
			"CACHE-CONTROL: max-age=%d\r\n"+
			"EXT:\r\n"+
			"LOCATION: %s\r\n"+
			"SERVER: streamtv/1.0 UPnP/1.0\r\n"+
			"ST: urn:schemas-upnp-org:device:MediaServer:1\r\n"+
			"USN: uuid:%s::urn:schemas-upnp-org:device:MediaServer:1\r\n"+
			"\r\n",
		responseTTLSeconds, r.deviceXMLURL, r.deviceID,
	)
}

// deviceXMLURL derives the device description location from the
// configured base URL. Empty means the responder cannot advertise.
func deviceXMLURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return ""
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/device.xml"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
