// ABOUTME: Audio alert metadata parsed from the JSON header of an MQTT frame
// ABOUTME: Applies defaults for omitted fields and clamps out-of-range values
package alert

import (
	"encoding/json"
	"fmt"
)

// Defaults for optional header fields.
const (
	DefaultPriority  = 5
	DefaultVolume    = 40
	DefaultPlayCount = 1
)

// Metadata describes one audio alert as declared by its JSON header.
// PlayCount 0 means repeat until stopped.
type Metadata struct {
	OpusDataSize     int    `json:"opus_data_size"`
	Priority         int    `json:"priority"`
	SaveToFile       bool   `json:"save_to_file"`
	Filename         string `json:"filename"`
	PlayCount        int    `json:"play_count"`
	Volume           int    `json:"volume"`
	InterruptCurrent bool   `json:"interrupt_current"`
}

// rawMetadata uses pointers so omitted fields can be told apart from zeros.
type rawMetadata struct {
	OpusDataSize     *int    `json:"opus_data_size"`
	Priority         *int    `json:"priority"`
	SaveToFile       *bool   `json:"save_to_file"`
	Filename         *string `json:"filename"`
	PlayCount        *int    `json:"play_count"`
	Volume           *int    `json:"volume"`
	InterruptCurrent *bool   `json:"interrupt_current"`
}

// ParseMetadata decodes a JSON header into Metadata, applying defaults and
// clamping numeric fields rather than rejecting them.
func ParseMetadata(header []byte) (Metadata, error) {
	var raw rawMetadata
	if err := json.Unmarshal(header, &raw); err != nil {
		return Metadata{}, fmt.Errorf("invalid alert header: %w", err)
	}

	if raw.OpusDataSize == nil || *raw.OpusDataSize <= 0 {
		return Metadata{}, fmt.Errorf("alert header missing required field opus_data_size")
	}

	m := Metadata{
		OpusDataSize: *raw.OpusDataSize,
		Priority:     DefaultPriority,
		Volume:       DefaultVolume,
		PlayCount:    DefaultPlayCount,
	}

	if raw.Priority != nil {
		m.Priority = clamp(*raw.Priority, 0, 255)
	}
	if raw.Volume != nil {
		m.Volume = clamp(*raw.Volume, 0, 100)
	}
	if raw.PlayCount != nil && *raw.PlayCount >= 0 {
		m.PlayCount = *raw.PlayCount
	}
	if raw.SaveToFile != nil {
		m.SaveToFile = *raw.SaveToFile
	}
	if raw.Filename != nil {
		m.Filename = *raw.Filename
	}
	if raw.InterruptCurrent != nil {
		m.InterruptCurrent = *raw.InterruptCurrent
	}

	if m.SaveToFile && m.Filename == "" {
		return Metadata{}, fmt.Errorf("alert header sets save_to_file without filename")
	}

	return m, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
