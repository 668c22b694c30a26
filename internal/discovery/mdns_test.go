package discovery

import (
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "server with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "arrayacq-lab1"},
				HostName:      "lab1.local.",
				Port:          55500,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
				Text:          []string{"protocol=1006", "version=1.0.0"},
			},
			wantIP:   "192.168.4.16",
			wantPort: 55500,
		},
		{
			name: "IPv6 fallback",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "arrayacq-lab2"},
				HostName:      "lab2.local.",
				Port:          50000,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 50000,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				HostName: "lab3.local.",
				Port:     55500,
			},
			wantNil: true,
		},
		{
			name: "no port",
			entry: &zeroconf.ServiceEntry{
				HostName: "lab4.local.",
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := parseServiceEntry(tt.entry)
			if tt.wantNil {
				if srv != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", srv)
				}
				return
			}
			if srv == nil {
				t.Fatal("parseServiceEntry() = nil, want server")
			}
			if srv.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", srv.IP, tt.wantIP)
			}
			if srv.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", srv.Port, tt.wantPort)
			}
			if srv.Instance != tt.entry.Instance {
				t.Errorf("Instance = %q, want %q", srv.Instance, tt.entry.Instance)
			}
			if srv.DiscoveredAt.IsZero() {
				t.Error("DiscoveredAt should be set")
			}
		})
	}
}

func TestParseText(t *testing.T) {
	got := parseText([]string{"protocol=1006", "flag", "path=a=b"})
	want := map[string]string{"protocol": "1006", "flag": "", "path": "a=b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseText() = %v, want %v", got, want)
	}
}

func TestTextRecordsSorted(t *testing.T) {
	got := textRecords(map[string]string{"version": "1.0.0", "protocol": "1006"})
	want := []string{"protocol=1006", "version=1.0.0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("textRecords() = %v, want %v", got, want)
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		srv  Server
		want string
	}{
		{Server{IP: "192.168.1.10", Port: 55500}, "192.168.1.10:55500"},
		{Server{IP: "fe80::1", Port: 50000}, "[fe80::1]:50000"},
	}
	for _, tt := range tests {
		if got := tt.srv.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}

	srv := &Server{Instance: "a", Hostname: "h.local.", IP: "10.0.0.1", Port: 55500}
	if got := srv.String(); got != "arrayacq server a (h.local.) at 10.0.0.1:55500" {
		t.Errorf("String() = %q", got)
	}
	if srv.GetMetadata("protocol") != "" {
		t.Error("GetMetadata on nil map should be empty")
	}
}

func TestNewScanner(t *testing.T) {
	if s := NewScanner(); s.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
	if DefaultScanTimeout > 10*time.Second {
		t.Errorf("DefaultScanTimeout = %v, too long for interactive use", DefaultScanTimeout)
	}
}
