// ABOUTME: Tests for device identity resolution
// ABOUTME: Runs against the real host, asserting shape not values
package device

import (
	"net"
	"testing"

	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/version"
)

func TestResolveConfiguredID(t *testing.T) {
	info, err := Resolve("speaker-lobby")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.ID != "speaker-lobby" {
		t.Errorf("configured id not used: %s", info.ID)
	}
	if info.Firmware != version.Version {
		t.Errorf("expected firmware %s, got %s", version.Version, info.Firmware)
	}
}

func TestResolveFallbackID(t *testing.T) {
	info, err := Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.ID == "" {
		t.Error("fallback id must not be empty")
	}
}

func TestLocalIPIsParseable(t *testing.T) {
	ip := LocalIP()
	if ip == "" {
		t.Skip("host has no non-loopback IPv4 address")
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		t.Errorf("expected an IPv4 address, got %q", ip)
	}
	if parsed.IsLoopback() {
		t.Errorf("loopback address reported: %s", ip)
	}
}
