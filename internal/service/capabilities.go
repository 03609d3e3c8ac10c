package service

import (
	"sort"
	"strings"

	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// Actor is whoever attempts to act on a request level.
type Actor struct {
	ID          string
	Designation string
	Roles       []string
}

// CapabilityRegistry maps designations to the extra capabilities they grant.
// An actor's capability set is its designation, its roles, and every
// capability granted to its designation. Eligibility is set membership.
type CapabilityRegistry struct {
	grants map[string][]string
}

// NewCapabilityRegistry builds a registry from a designation → capabilities map.
// Keys and values are compared case-insensitively.
func NewCapabilityRegistry(grants map[string][]string) *CapabilityRegistry {
	r := &CapabilityRegistry{grants: make(map[string][]string, len(grants))}
	for designation, caps := range grants {
		key := normalize(designation)
		for _, c := range caps {
			if c = normalize(c); c != "" {
				r.grants[key] = append(r.grants[key], c)
			}
		}
	}
	return r
}

// CapabilitiesOf returns the actor's sorted, de-duplicated capability set.
func (r *CapabilityRegistry) CapabilitiesOf(a Actor) []string {
	set := make(map[string]struct{})
	add := func(c string) {
		if c = normalize(c); c != "" {
			set[c] = struct{}{}
		}
	}

	add(a.Designation)
	for _, role := range a.Roles {
		add(role)
	}
	if r != nil {
		for _, c := range r.grants[normalize(a.Designation)] {
			add(c)
		}
	}

	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CanAct reports whether the actor holds the level's required capability.
func (r *CapabilityRegistry) CanAct(a Actor, lvl repository.Level) bool {
	required := normalize(lvl.RequiredCapability)
	if required == "" {
		return false
	}
	for _, c := range r.CapabilitiesOf(a) {
		if c == required {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
