package creative

import "strings"

// Angle is the psychological persuasion strategy selected for an ad. The set
// is closed: model output that does not map onto one of these values is
// replaced with a default, never propagated raw.
type Angle string

const (
	AngleUrgency     Angle = "urgency"
	AngleScarcity    Angle = "scarcity"
	AngleSocialProof Angle = "social_proof"
	AngleCuriosity   Angle = "curiosity"
	AngleAuthority   Angle = "authority"
	AngleValue       Angle = "value"
	AngleTrust       Angle = "trust"
	AngleAspiration  Angle = "aspiration"
)

// Angles lists every valid angle.
var Angles = []Angle{
	AngleUrgency, AngleScarcity, AngleSocialProof, AngleCuriosity,
	AngleAuthority, AngleValue, AngleTrust, AngleAspiration,
}

// DefaultAngle is used when model output fails enum validation.
const DefaultAngle = AngleValue

// ParseAngle maps arbitrary model output onto the closed angle set.
func ParseAngle(s string) (Angle, bool) {
	n := normalizeEnum(s)
	for _, a := range Angles {
		if n == string(a) {
			return a, true
		}
	}
	// Common synonyms seen in model output.
	switch n {
	case "fomo", "fear_of_missing_out":
		return AngleScarcity, true
	case "testimonial", "proof":
		return AngleSocialProof, true
	case "savings", "discount", "price":
		return AngleValue, true
	case "security", "safety":
		return AngleTrust, true
	}
	return DefaultAngle, false
}

// VisualStyle is the closed set of internal rendering styles.
type VisualStyle string

const (
	StylePhotorealistic VisualStyle = "photorealistic"
	StyleIllustration   VisualStyle = "illustration"
	StyleMinimalist     VisualStyle = "minimalist"
	StyleLifestyle      VisualStyle = "lifestyle"
)

// VisualStyles lists every valid visual style.
var VisualStyles = []VisualStyle{
	StylePhotorealistic, StyleIllustration, StyleMinimalist, StyleLifestyle,
}

// DefaultVisualStyle is used when model output fails enum validation.
const DefaultVisualStyle = StylePhotorealistic

// ParseVisualStyle maps arbitrary model output onto the closed style set.
func ParseVisualStyle(s string) (VisualStyle, bool) {
	n := normalizeEnum(s)
	for _, v := range VisualStyles {
		if n == string(v) {
			return v, true
		}
	}
	switch n {
	case "photo", "photography", "realistic", "cinematic":
		return StylePhotorealistic, true
	case "cartoon", "drawn", "flat", "vector", "3d_render", "3d":
		return StyleIllustration, true
	case "minimal", "clean", "simple":
		return StyleMinimalist, true
	case "ugc", "candid", "authentic", "natural":
		return StyleLifestyle, true
	}
	return DefaultVisualStyle, false
}

// MapCallerStyle maps the broader caller-facing style vocabulary onto the
// four internal styles. Caller overrides take precedence over the model's
// choice, so this mapping is the documented contract for the override field.
func MapCallerStyle(s string) (VisualStyle, bool) {
	if s == "" {
		return "", false
	}
	v, _ := ParseVisualStyle(s)
	return v, true
}

func normalizeEnum(s string) string {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.ReplaceAll(n, "-", "_")
	n = strings.ReplaceAll(n, " ", "_")
	return n
}
