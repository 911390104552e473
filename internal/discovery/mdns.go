// Package discovery advertises the board's viewer on the local network over
// mDNS and finds other running boards.
package discovery

import (
	"context"
	"fmt"
	stdlog "log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	log "github.com/sirupsen/logrus"
)

// ServiceType is the DNS-SD service name of the viewer.
const ServiceType = "_mudra._tcp"

// DefaultBrowseTimeout bounds a Browse call.
const DefaultBrowseTimeout = 2 * time.Second

// Peer is a board found on the network.
type Peer struct {
	Name string   `json:"name"`
	Host string   `json:"host"`
	Addr string   `json:"addr"`
	Info []string `json:"info,omitempty"`
}

// URL returns the peer's viewer URL.
func (p Peer) URL() string {
	return "http://" + p.Addr + "/"
}

// logger routes the library's log output to logrus at debug level.
func logger() *stdlog.Logger {
	return stdlog.New(log.StandardLogger().WriterLevel(log.DebugLevel), "", 0)
}

// NewService builds the mDNS zone for a viewer on port. An empty instance
// uses the hostname; nil ips use the first non-loopback IPv4 address.
func NewService(instance string, port int, ips []net.IP, txt []string) (*mdns.MDNSService, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}
	if len(ips) == 0 {
		ips = []net.IP{FirstIPv4()}
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, ips, txt)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return service, nil
}

// Advertiser answers mDNS queries for the viewer until shut down.
type Advertiser struct {
	server  *mdns.Server
	service *mdns.MDNSService
}

// Advertise starts answering queries for a viewer listening on port.
func Advertise(instance string, port int, txt []string) (*Advertiser, error) {
	service, err := NewService(instance, port, nil, txt)
	if err != nil {
		return nil, err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service, Logger: logger()})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}

	log.WithFields(log.Fields{
		"instance": service.Instance,
		"port":     port,
		"ip":       service.IPs[0].String(),
	}).Info("advertising viewer")
	return &Advertiser{server: server, service: service}, nil
}

// Service returns the advertised zone.
func (a *Advertiser) Service() *mdns.MDNSService {
	return a.service
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}

// Browse looks for running boards until timeout or ctx is done.
func Browse(ctx context.Context, timeout time.Duration) ([]Peer, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan []Peer)
	go func() {
		var peers []Peer
		seen := make(map[string]bool)
		for e := range entries {
			p, ok := peerOf(e)
			if !ok || seen[p.Addr] {
				continue
			}
			seen[p.Addr] = true
			peers = append(peers, p)
		}
		done <- peers
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	params.Logger = logger()

	err := mdns.Query(params)
	close(entries)
	peers := <-done
	if err != nil {
		return peers, fmt.Errorf("mdns query: %w", err)
	}
	return peers, nil
}

func peerOf(e *mdns.ServiceEntry) (Peer, bool) {
	if e.AddrV4 == nil || e.Port == 0 {
		return Peer{}, false
	}
	name := e.Name
	if i := strings.Index(name, "."+ServiceType); i > 0 {
		name = name[:i]
	}
	return Peer{
		Name: strings.ReplaceAll(name, `\ `, " "),
		Host: strings.TrimSuffix(e.Host, "."),
		Addr: net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port)),
		Info: e.InfoFields,
	}, true
}

// PortOf extracts the port from a listen address such as ":8080".
func PortOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return port, nil
}

// FirstIPv4 returns the first non-loopback IPv4 address of an up
// interface, or 127.0.0.1.
func FirstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
