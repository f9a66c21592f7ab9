package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainTrace = "phasedefer/trace/v1"
	DomainPlan  = "phasedefer/plan/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TraceDigest computes a content digest of a trace. Two runs of the same
// plan produce the same digest; replay relies on this.
func TraceDigest(events []TraceEvent) (string, error) {
	arr := make([]any, len(events))
	for i, e := range events {
		arr[i] = e.CanonicalMap()
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// PlanDigest computes a content digest of a plan.
func PlanDigest(p *Plan) (string, error) {
	sources := make([]any, len(p.Sources))
	for i, s := range p.Sources {
		classes := make([]any, len(s.Classes))
		for j, c := range s.Classes {
			m := map[string]any{
				"name":    c.Name,
				"kind":    string(c.Kind),
				"members": c.Members,
			}
			if c.Outer != "" {
				m["outer"] = c.Outer
			}
			classes[j] = m
		}
		sources[i] = map[string]any{"name": s.Name, "classes": classes}
	}
	units := make([]any, len(p.Units))
	for i, u := range p.Units {
		units[i] = map[string]any{
			"name":      u.Name,
			"priority":  u.Priority,
			"phase":     u.Phase.String(),
			"source":    u.Source,
			"target":    u.Target,
			"member":    u.Member,
			"fail":      u.Fail,
			"immediate": u.Immediate,
		}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"name":    p.Name,
		"sources": sources,
		"units":   units,
	})
	if err != nil {
		return "", fmt.Errorf("PlanDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}
