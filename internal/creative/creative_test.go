package creative

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAngle(t *testing.T) {
	tests := []struct {
		in   string
		want Angle
		ok   bool
	}{
		{"urgency", AngleUrgency, true},
		{"Social Proof", AngleSocialProof, true},
		{"  TRUST ", AngleTrust, true},
		{"fomo", AngleScarcity, true},
		{"discount", AngleValue, true},
		{"galactic", DefaultAngle, false},
		{"", DefaultAngle, false},
	}
	for _, tt := range tests {
		got, ok := ParseAngle(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
	}
}

func TestParseVisualStyle(t *testing.T) {
	tests := []struct {
		in   string
		want VisualStyle
		ok   bool
	}{
		{"photorealistic", StylePhotorealistic, true},
		{"3d render", StyleIllustration, true},
		{"minimal", StyleMinimalist, true},
		{"UGC", StyleLifestyle, true},
		{"oil painting", DefaultVisualStyle, false},
	}
	for _, tt := range tests {
		got, ok := ParseVisualStyle(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
	}
}

func TestMapCallerStyle(t *testing.T) {
	v, ok := MapCallerStyle("cinematic")
	assert.True(t, ok)
	assert.Equal(t, StylePhotorealistic, v)

	// Unknown caller input still yields a valid internal style.
	v, ok = MapCallerStyle("brutalist")
	assert.True(t, ok)
	assert.Equal(t, DefaultVisualStyle, v)

	_, ok = MapCallerStyle("")
	assert.False(t, ok)
}

func TestPlatformValid(t *testing.T) {
	assert.True(t, PlatformMeta.Valid())
	assert.True(t, PlatformTikTok.Valid())
	assert.False(t, Platform("SNAPCHAT").Valid())
	assert.False(t, Platform("meta").Valid())
}

func TestRequiredAspectRatios(t *testing.T) {
	assert.Equal(t, []AspectRatio{RatioSquare, RatioPortrait}, RequiredAspectRatios(PlatformMeta))
	assert.Equal(t, []AspectRatio{RatioPortrait}, RequiredAspectRatios(PlatformTikTok))
}

func TestSeasonFor(t *testing.T) {
	july := time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC)
	january := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, SeasonSummer, SeasonFor("MX", july))
	assert.Equal(t, SeasonWinter, SeasonFor("MX", january))

	// Southern hemisphere inverts the calendar.
	assert.Equal(t, SeasonWinter, SeasonFor("AR", july))
	assert.Equal(t, SeasonSummer, SeasonFor("CL", january))

	// Equatorial countries stay on the northern table.
	assert.Equal(t, SeasonSummer, SeasonFor("CO", july))
}
