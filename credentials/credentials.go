// Package credentials holds smpctl's local admin-passphrase gate: a
// client-side confirmation required before destructive commands
// (upload, confirm, reset) are sent, so an operator can't fat-finger a
// flash session against a fleet without re-typing a known passphrase.
// This never crosses the wire — the SMP protocol itself has no
// authentication model — it only protects the operator running smpctl.
//
// Adapted from the teacher's embedded-credential pattern
// (ssid.text/password.text for WiFi join): the override file here is
// admin_password.text, left empty by default so the gate is a no-op
// until an operator opts in.
package credentials

import (
	_ "embed"
	"strings"
)

var (
	//go:embed admin_password.text
	adminPassword string
)

// AdminPasswordConfigured reports whether a non-empty admin passphrase
// was baked into this build of smpctl.
func AdminPasswordConfigured() bool {
	return strings.TrimSpace(adminPassword) != ""
}

// CheckAdminPassword reports whether candidate matches the configured
// passphrase. When no passphrase is configured, every candidate is
// accepted — the gate is opt-in.
func CheckAdminPassword(candidate string) bool {
	expected := strings.TrimSpace(adminPassword)
	if expected == "" {
		return true
	}
	return strings.TrimSpace(candidate) == expected
}
