// ABOUTME: Device identity and host facts for status reporting
// ABOUTME: Hardware id and uptime come from the OS, the rest from config
package device

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/version"
)

// Info identifies this speaker on the network.
type Info struct {
	ID         string
	HardwareID string
	Firmware   string
}

// Resolve builds the device identity. An empty configured id falls back to
// a hostname-derived one so a fleet-flashed unit still reports something
// stable.
func Resolve(configuredID string) (Info, error) {
	hostInfo, err := host.Info()
	if err != nil {
		return Info{}, fmt.Errorf("read host info: %w", err)
	}

	id := configuredID
	if id == "" {
		hostname, herr := os.Hostname()
		if herr != nil || hostname == "" {
			hostname = "speaker"
		}
		id = strings.ToLower(hostname)
	}

	return Info{
		ID:         id,
		HardwareID: hostInfo.HostID,
		Firmware:   version.Version,
	}, nil
}

// Uptime returns seconds since the host booted.
func Uptime() uint64 {
	hostInfo, err := host.Info()
	if err != nil {
		return 0
	}
	return hostInfo.Uptime
}

// LocalIP returns the primary non-loopback IPv4 address, or empty when the
// device has none.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
