package contract

import (
	"fmt"
	"sort"
)

// VersionRange is an inclusive contiguous range of schema versions.
type VersionRange struct {
	Min SchemaVersion `json:"min" yaml:"min"`
	Max SchemaVersion `json:"max" yaml:"max"`
}

// Contains reports whether v lies within the range.
func (r VersionRange) Contains(v SchemaVersion) bool {
	return r.Min <= v && v <= r.Max
}

// CompatibilityPolicy declares which schema versions of one EventType a
// consumer can correctly process. Versions and Range are unioned.
// The policy is owned by the consumer; the engine only reads it.
type CompatibilityPolicy struct {
	Consumer string          `json:"consumer,omitempty" yaml:"consumer,omitempty"`
	Type     EventType       `json:"type" yaml:"type"`
	Versions []SchemaVersion `json:"versions,omitempty" yaml:"versions,omitempty"`
	Range    *VersionRange   `json:"range,omitempty" yaml:"range,omitempty"`
}

// Accepts reports whether v is in the policy's accepted set.
func (p CompatibilityPolicy) Accepts(v SchemaVersion) bool {
	if p.Range != nil && p.Range.Contains(v) {
		return true
	}
	for _, a := range p.Versions {
		if a == v {
			return true
		}
	}
	return false
}

// Empty reports whether the policy accepts no version at all. A range
// accepts something when it overlaps [1, ∞).
func (p CompatibilityPolicy) Empty() bool {
	if p.Range != nil && p.Range.Max >= 1 && p.Range.Min <= p.Range.Max {
		return false
	}
	for _, v := range p.Versions {
		if v >= 1 {
			return false
		}
	}
	return true
}

// MaxAccepted returns the highest version the policy accepts.
// Returns 0 for an empty policy.
func (p CompatibilityPolicy) MaxAccepted() SchemaVersion {
	var max SchemaVersion
	if p.Range != nil && p.Range.Min <= p.Range.Max {
		max = p.Range.Max
	}
	for _, v := range p.Versions {
		if v > max {
			max = v
		}
	}
	return max
}

// PolicySet holds a consumer's policies keyed by event type.
type PolicySet map[EventType]CompatibilityPolicy

// NewPolicySet builds a PolicySet from individual policies. A later policy
// for the same type replaces an earlier one.
func NewPolicySet(policies ...CompatibilityPolicy) PolicySet {
	set := make(PolicySet, len(policies))
	for _, p := range policies {
		set[p.Type] = p
	}
	return set
}

// Types returns the subscribed event types in sorted order.
func (s PolicySet) Types() []EventType {
	types := make([]EventType, 0, len(s))
	for t := range s {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Outcome is the result category of an admission decision.
type Outcome string

const (
	// OutcomeAdmit means process the envelope as-is.
	OutcomeAdmit Outcome = "ADMIT"

	// OutcomeAdmitWithDowngrade means reinterpret the payload as Decision.Target.
	OutcomeAdmitWithDowngrade Outcome = "ADMIT_WITH_DOWNGRADE"

	// OutcomeReject means do not process; see Decision.Reason.
	OutcomeReject Outcome = "REJECT"
)

// RejectReason explains a rejected admission.
type RejectReason string

const (
	ReasonVersionTooOld  RejectReason = "VERSION_TOO_OLD"
	ReasonVersionTooNew  RejectReason = "VERSION_TOO_NEW"
	ReasonUnknownType    RejectReason = "UNKNOWN_TYPE"
	ReasonUnknownVersion RejectReason = "UNKNOWN_VERSION"
	ReasonInvalidPolicy  RejectReason = "INVALID_POLICY"
	ReasonNotSubscribed  RejectReason = "NOT_SUBSCRIBED"

	// ReasonNotReady means the registry was read before Seal.
	ReasonNotReady RejectReason = "NOT_READY"
)

// Decision is the consumer-side admission result.
type Decision struct {
	Outcome  Outcome       `json:"outcome"`
	Type     EventType     `json:"type"`
	Declared SchemaVersion `json:"declared"`
	Target   SchemaVersion `json:"target,omitempty"` // set for OutcomeAdmitWithDowngrade
	Reason   RejectReason  `json:"reason,omitempty"` // set for OutcomeReject
}

// Admitted reports whether the envelope may be processed.
func (d Decision) Admitted() bool {
	return d.Outcome == OutcomeAdmit || d.Outcome == OutcomeAdmitWithDowngrade
}

// EffectiveVersion is the version the consumer should interpret the payload as.
// Returns 0 for rejected decisions.
func (d Decision) EffectiveVersion() SchemaVersion {
	switch d.Outcome {
	case OutcomeAdmit:
		return d.Declared
	case OutcomeAdmitWithDowngrade:
		return d.Target
	default:
		return 0
	}
}

func (d Decision) String() string {
	switch d.Outcome {
	case OutcomeAdmitWithDowngrade:
		return fmt.Sprintf("%s(%d)", d.Outcome, d.Target)
	case OutcomeReject:
		return fmt.Sprintf("%s(%s)", d.Outcome, d.Reason)
	default:
		return string(d.Outcome)
	}
}

// Admit creates an OutcomeAdmit decision.
func Admit(t EventType, declared SchemaVersion) Decision {
	return Decision{Outcome: OutcomeAdmit, Type: t, Declared: declared}
}

// AdmitWithDowngrade creates an OutcomeAdmitWithDowngrade decision.
func AdmitWithDowngrade(t EventType, declared, target SchemaVersion) Decision {
	return Decision{Outcome: OutcomeAdmitWithDowngrade, Type: t, Declared: declared, Target: target}
}

// Reject creates an OutcomeReject decision.
func Reject(t EventType, declared SchemaVersion, reason RejectReason) Decision {
	return Decision{Outcome: OutcomeReject, Type: t, Declared: declared, Reason: reason}
}
