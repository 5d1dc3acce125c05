// ABOUTME: Tests for PCM render helpers
// ABOUTME: Covers gain application and mono upmix
package player

import (
	"testing"
)

func TestApplyGain(t *testing.T) {
	tests := []struct {
		name     string
		gain     float64
		in       []int16
		expected []int16
	}{
		{"unity", 1.0, []int16{1000, -1000}, []int16{1000, -1000}},
		{"half", 0.5, []int16{1000, -1000, 501}, []int16{500, -500, 250}},
		{"muted", 0.0, []int16{1000, -1000}, []int16{0, 0}},
		{"ceiling", 0.75, []int16{400}, []int16{300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]int16, len(tt.in))
			copy(samples, tt.in)
			applyGain(samples, tt.gain)
			for i, want := range tt.expected {
				if samples[i] != want {
					t.Errorf("sample %d: expected %d, got %d", i, want, samples[i])
				}
			}
		})
	}
}

func TestDuplicateMono(t *testing.T) {
	pcm := make([]int16, 8)
	copy(pcm, []int16{10, 20, 30, 40})

	duplicateMono(pcm, 4)

	expected := []int16{10, 10, 20, 20, 30, 30, 40, 40}
	for i, want := range expected {
		if pcm[i] != want {
			t.Errorf("sample %d: expected %d, got %d", i, want, pcm[i])
		}
	}
}

func TestControllerGain(t *testing.T) {
	c := &Controller{cfg: Config{MaxVolume: 75}}

	tests := []struct {
		volume   int
		muted    bool
		expected float64
	}{
		{50, false, 0.5},
		{100, false, 0.75}, // capped at the device ceiling
		{75, false, 0.75},
		{0, false, 0.0},
		{100, true, 0.0}, // mute overrides volume
	}

	for _, tt := range tests {
		c.volume = tt.volume
		c.muted = tt.muted
		if got := c.gain(); got != tt.expected {
			t.Errorf("volume=%d muted=%v: expected %f, got %f",
				tt.volume, tt.muted, tt.expected, got)
		}
	}
}
