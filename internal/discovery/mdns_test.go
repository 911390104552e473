package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	ip := net.IPv4(192, 168, 1, 20)
	svc, err := NewService("studio", 8080, []net.IP{ip}, []string{"path=/"})
	require.NoError(t, err)

	assert.Equal(t, "studio", svc.Instance)
	assert.Equal(t, ServiceType, svc.Service)
	assert.Equal(t, 8080, svc.Port)

	t.Run("answers PTR queries", func(t *testing.T) {
		rrs := svc.Records(dns.Question{
			Name:   ServiceType + ".local.",
			Qtype:  dns.TypePTR,
			Qclass: dns.ClassINET,
		})
		require.NotEmpty(t, rrs)
		ptr, ok := rrs[0].(*dns.PTR)
		require.True(t, ok, "first record should be PTR, got %T", rrs[0])
		assert.Equal(t, "studio."+ServiceType+".local.", ptr.Ptr)
	})

	t.Run("answers SRV queries with the port", func(t *testing.T) {
		rrs := svc.Records(dns.Question{
			Name:   "studio." + ServiceType + ".local.",
			Qtype:  dns.TypeSRV,
			Qclass: dns.ClassINET,
		})
		var srv *dns.SRV
		for _, rr := range rrs {
			if s, ok := rr.(*dns.SRV); ok {
				srv = s
			}
		}
		require.NotNil(t, srv)
		assert.Equal(t, uint16(8080), srv.Port)
	})

	t.Run("defaults the address", func(t *testing.T) {
		svc, err := NewService("studio", 9000, nil, nil)
		require.NoError(t, err)
		require.Len(t, svc.IPs, 1)
		assert.NotNil(t, svc.IPs[0].To4())
	})
}

func TestPortOf(t *testing.T) {
	tests := []struct {
		addr    string
		want    int
		wantErr bool
	}{
		{":8080", 8080, false},
		{"0.0.0.0:9000", 9000, false},
		{"[::1]:7000", 7000, false},
		{"localhost", 0, true},
		{":http", 0, true},
		{":0", 0, true},
		{":70000", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := PortOf(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeerOf(t *testing.T) {
	t.Run("entry with address", func(t *testing.T) {
		p, ok := peerOf(&mdns.ServiceEntry{
			Name:       `my\ laptop._mudra._tcp.local.`,
			Host:       "laptop.local.",
			AddrV4:     net.IPv4(10, 0, 0, 7),
			Port:       8080,
			InfoFields: []string{"mudra"},
		})
		require.True(t, ok)
		assert.Equal(t, "my laptop", p.Name)
		assert.Equal(t, "laptop.local", p.Host)
		assert.Equal(t, "10.0.0.7:8080", p.Addr)
		assert.Equal(t, "http://10.0.0.7:8080/", p.URL())
		assert.Equal(t, []string{"mudra"}, p.Info)
	})

	t.Run("incomplete entries are skipped", func(t *testing.T) {
		_, ok := peerOf(&mdns.ServiceEntry{Name: "x", Port: 8080})
		assert.False(t, ok)
		_, ok = peerOf(&mdns.ServiceEntry{Name: "x", AddrV4: net.IPv4(10, 0, 0, 7)})
		assert.False(t, ok)
	})
}

func TestFirstIPv4(t *testing.T) {
	assert.NotNil(t, FirstIPv4().To4())
}

func TestAdvertiseBrowse_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	adv, err := Advertise("mudra-test", 18080, []string{"mudra"})
	if err != nil {
		t.Skipf("multicast unavailable: %v", err)
	}
	defer adv.Shutdown()
	assert.Equal(t, 18080, adv.Service().Port)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	peers, err := Browse(ctx, time.Second)
	if err != nil {
		t.Skipf("mdns query failed: %v", err)
	}

	for _, p := range peers {
		if p.Name == "mudra-test" {
			return
		}
	}
	t.Skip("own advertisement not seen; multicast loopback may be disabled")
}
