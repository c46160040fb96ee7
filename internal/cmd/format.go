package cmd

import "github.com/vaisest/fakefurbot/internal/doctor"

// statusIcon renders a doctor status as a single terminal glyph.
func statusIcon(status string) string {
	switch status {
	case doctor.StatusPass:
		return "✓"
	case doctor.StatusWarn:
		return "⚠"
	default:
		return "✗"
	}
}

// maskValue hides all but the last four characters of a configured value.
func maskValue(v string) string {
	if v == "" {
		return "(not set)"
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}
