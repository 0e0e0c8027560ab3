package wire

import "strings"

// ToCanonical converts a Go-style handler identifier ("billing.ChargeCard")
// into the wire-compatible double-colon form ("Billing::ChargeCard") used
// by job_class, so that a job enqueued here is dispatchable by a
// cooperating worker written in the other ecosystem.
func ToCanonical(goName string) string {
	parts := strings.Split(goName, ".")
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "::")
}

// FromCanonical maps a double-colon job_class back to the Go-style
// identifier ("Billing::ChargeCard" -> "billing.ChargeCard"), used when
// resolving an incoming job_class to a registry lookup key. Namespace
// segments get a lowercase first letter and the final (type) segment is
// kept as-is, so it inverts ToCanonical for identifiers whose type name is
// capitalized.
func FromCanonical(canonical string) string {
	parts := strings.Split(canonical, "::")
	for i, p := range parts[:len(parts)-1] {
		if len(p) == 0 {
			continue
		}
		parts[i] = strings.ToLower(p[:1]) + p[1:]
	}
	return strings.Join(parts, ".")
}
