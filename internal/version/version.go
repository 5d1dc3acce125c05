// ABOUTME: Firmware version constants
// ABOUTME: Reported in MQTT status messages and logs
package version

const (
	// Version is the firmware version string.
	Version = "0.9.2"

	// Product is the product name reported to the backend.
	Product = "RapidReach Speaker"

	// Manufacturer identifies the device vendor.
	Manufacturer = "Alnicko"
)
