// Package capability implements the typed effect/resource/safety/stability
// descriptors attached to every verb (spec §3, §4.2) and the compatibility
// lattice used to authorize invocations against a caller's operator
// context. Every operation here is pure and total; there are no error
// returns in this package.
package capability

// Class classifies the side effects a verb may have, in increasing order
// of risk: Pure < ReadOnlyFS < {ReadWriteFS, Network, Environment} <
// Subprocess < Dangerous.
type Class int

const (
	Pure Class = iota
	ReadOnlyFS
	ReadWriteFS
	Network
	Environment
	Subprocess
	Dangerous
)

func (c Class) String() string {
	switch c {
	case Pure:
		return "Pure"
	case ReadOnlyFS:
		return "ReadOnlyFS"
	case ReadWriteFS:
		return "ReadWriteFS"
	case Network:
		return "Network"
	case Environment:
		return "Environment"
	case Subprocess:
		return "Subprocess"
	case Dangerous:
		return "Dangerous"
	default:
		return "Unknown"
	}
}

// classRank gives each class a total order consistent with the partial
// order in spec §3: ReadWriteFS, Network, and Environment all sit at the
// same rank between ReadOnlyFS and Subprocess.
func classRank(c Class) int {
	switch c {
	case Pure:
		return 0
	case ReadOnlyFS:
		return 1
	case ReadWriteFS, Network, Environment:
		return 2
	case Subprocess:
		return 3
	case Dangerous:
		return 4
	default:
		return 4
	}
}

// ResourceBand is a coarse expected-latency class, ordered Instant <
// Fast < Medium < Slow < Cold.
type ResourceBand int

const (
	Instant ResourceBand = iota
	Fast
	Medium
	Slow
	Cold
)

func (b ResourceBand) String() string {
	switch b {
	case Instant:
		return "Instant"
	case Fast:
		return "Fast"
	case Medium:
		return "Medium"
	case Slow:
		return "Slow"
	case Cold:
		return "Cold"
	default:
		return "Unknown"
	}
}

// Stability describes a verb's maturity.
type Stability int

const (
	Stable Stability = iota
	Preview
	Experimental
	Deprecated
	NonDeterministic
)

func (s Stability) String() string {
	switch s {
	case Stable:
		return "Stable"
	case Preview:
		return "Preview"
	case Experimental:
		return "Experimental"
	case Deprecated:
		return "Deprecated"
	case NonDeterministic:
		return "NonDeterministic"
	default:
		return "Unknown"
	}
}

// Safety describes who or what may invoke a verb.
type Safety int

const (
	AgentSafe Safety = iota
	HumanReviewRequired
	InteractiveOnly
)

func (s Safety) String() string {
	switch s {
	case AgentSafe:
		return "AgentSafe"
	case HumanReviewRequired:
		return "HumanReviewRequired"
	case InteractiveOnly:
		return "InteractiveOnly"
	default:
		return "Unknown"
	}
}

// OperatorProfile describes what a given caller (human operator or agent)
// is permitted to invoke. A profile "permits" a Safety level if that
// level appears in AllowedSafety.
type OperatorProfile struct {
	Name          string
	AllowedSafety map[Safety]bool
	MaxClass      Class
	MaxBand       ResourceBand
}

// Permits reports whether the profile allows a given safety level.
func (p OperatorProfile) Permits(s Safety) bool {
	if p.AllowedSafety == nil {
		return s == AgentSafe
	}
	return p.AllowedSafety[s]
}

// AgentProfile is the default profile for autonomous agent callers:
// AgentSafe only, capped at Network/Fast.
func AgentProfile() OperatorProfile {
	return OperatorProfile{
		Name:          "agent",
		AllowedSafety: map[Safety]bool{AgentSafe: true},
		MaxClass:      Network,
		MaxBand:       Fast,
	}
}

// HumanProfile is the default profile for interactive human operators:
// everything permitted, no band cap.
func HumanProfile() OperatorProfile {
	return OperatorProfile{
		Name: "human",
		AllowedSafety: map[Safety]bool{
			AgentSafe:            true,
			HumanReviewRequired:  true,
			InteractiveOnly:      true,
		},
		MaxClass: Dangerous,
		MaxBand:  Cold,
	}
}

// Contract is the capability descriptor attached to a verb (spec §3).
type Contract struct {
	Class         Class
	ResourceBand  ResourceBand
	Stability     Stability
	Safety        Safety
	RequiredRoles []string
	Idempotent    bool
	TenantID      string
}

// New constructs a contract from its four primary axes; RequiredRoles,
// Idempotent, and TenantID default to zero values and can be set on the
// returned value.
func New(class Class, band ResourceBand, stability Stability, safety Safety) Contract {
	return Contract{Class: class, ResourceBand: band, Stability: stability, Safety: safety}
}

// PureContract returns the contract for a side-effect-free, instant, stable,
// agent-safe verb.
func PureContract() Contract { return New(Pure, Instant, Stable, AgentSafe) }

// ReadOnly returns the contract for a read-only filesystem verb.
func ReadOnly() Contract { return New(ReadOnlyFS, Fast, Stable, AgentSafe) }

// ReadWrite returns the contract for a filesystem-mutating verb.
func ReadWrite() Contract { return New(ReadWriteFS, Medium, Stable, HumanReviewRequired) }

// NetworkContract returns the contract for a network-calling verb.
func NetworkContract() Contract { return New(Network, Medium, Stable, AgentSafe) }

// DangerousContract returns the contract for an irreversible or
// high-blast-radius verb.
func DangerousContract() Contract {
	return New(Dangerous, Slow, Stable, InteractiveOnly)
}

// IsAgentSafe reports whether the contract may be invoked by an
// autonomous agent: Safety == AgentSafe and Stability is neither
// Experimental nor NonDeterministic (spec §3).
func (c Contract) IsAgentSafe() bool {
	return c.Safety == AgentSafe && c.Stability != Experimental && c.Stability != NonDeterministic
}

// stabilityPenalty and safetyPenalty implement the risk_score formula
// resolved in SPEC_FULL.md §6.2.
func stabilityPenalty(s Stability) int {
	switch s {
	case Stable:
		return 0
	case Preview, Deprecated:
		return 1
	case Experimental, NonDeterministic:
		return 2
	default:
		return 0
	}
}

func safetyPenalty(s Safety) int {
	switch s {
	case AgentSafe:
		return 0
	case HumanReviewRequired:
		return 4
	case InteractiveOnly:
		return 6
	default:
		return 0
	}
}

// RiskScore computes a deterministic, monotonic risk score. It satisfies
// spec §8 item 2: RiskScore(Dangerous,...) > RiskScore(Network,...) >
// RiskScore(ReadOnlyFS,...) > RiskScore(Pure,...) for any fixed band,
// stability, and safety.
func (c Contract) RiskScore() int {
	return 10*classRank(c.Class) + 3*int(c.ResourceBand) + 2*stabilityPenalty(c.Stability) + safetyPenalty(c.Safety)
}

// IsCompatibleWith reports whether contract c may be invoked in context
// other, per spec §3: c.Class must be ⊑ other.Class in the lattice and
// c.ResourceBand must be ≤ other.ResourceBand. Safety is not compared
// here; IsCompatibleWithProfile adds the operator-profile safety check.
func (c Contract) IsCompatibleWith(other Contract) bool {
	return classRank(c.Class) <= classRank(other.Class) && c.ResourceBand <= other.ResourceBand
}

// IsCompatibleWithProfile reports full compatibility including the
// operator-profile safety check, matching spec §3's compatibility
// definition in full: class lattice, band order, and permitted safety.
func (c Contract) IsCompatibleWithProfile(profile OperatorProfile) bool {
	return classRank(c.Class) <= classRank(profile.MaxClass) &&
		c.ResourceBand <= profile.MaxBand &&
		profile.Permits(c.Safety)
}
