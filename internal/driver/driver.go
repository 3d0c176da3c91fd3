// Package driver implements the Autonomic Driver (C10): the pipeline that
// binds the Registry, Policy Governor, Quota Bucket, Session Kernel, and
// Lockchain into one invocation lifecycle — Admit, Quota, Session,
// Execute, Finalize, Respond (spec §4.10). Grounded on the teacher's
// tool-execution loop in internal/tools/executor.go, which performs the
// same admit-then-run-then-record shape around a single call: look up the
// handler, check it is permitted, run it, and log the outcome.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
	"github.com/seanchatmangpt/autonomic-cli/internal/config"
	"github.com/seanchatmangpt/autonomic-cli/internal/lockchain"
	"github.com/seanchatmangpt/autonomic-cli/internal/logging"
	"github.com/seanchatmangpt/autonomic-cli/internal/policy"
	"github.com/seanchatmangpt/autonomic-cli/internal/quota"
	"github.com/seanchatmangpt/autonomic-cli/internal/registry"
	"github.com/seanchatmangpt/autonomic-cli/internal/session"
	"github.com/seanchatmangpt/autonomic-cli/internal/telemetry"
)

var (
	// ErrNotPermitted is returned when the resolved verb's contract is
	// incompatible with the caller's operator profile.
	ErrNotPermitted = errors.New("driver: not permitted for this operator profile")
	// ErrPolicyBlocked is returned when the Policy Governor has the
	// matched capability in Disabled or ApprovalRequired state.
	ErrPolicyBlocked = errors.New("driver: blocked by policy governor")
	// ErrNoBody is returned when a resolved verb has no registered
	// executable body.
	ErrNoBody = errors.New("driver: no body registered for verb")
)

// Result is what a verb body returns from Execute: either an artifact or
// an error, never both (spec §4.10 item 4).
type Result struct {
	Artifact string
	Err      error
}

// VerbBody is the pluggable executable behind a resolved verb. It
// consumes the residual (post-dispatch) args and the session handle it
// must yield frames through, and must poll ctx/session cancellation at
// its own yield points — the driver offers no preemption of its own.
type VerbBody func(ctx context.Context, sess *session.Session, residualArgs []string) Result

// Outcome is the invocation outcome returned by Respond (spec §4.10 item 6).
type Outcome struct {
	Status           string
	ReceiptChainHash lockchain.Hash
	Warnings         []string
	Metrics          session.Metrics
}

// Driver wires together the registry and the six core components it
// admits invocations through. One Driver serves the whole process;
// Quota and Lockchain are process-wide shared state per spec §5.
type Driver struct {
	reg       *registry.Registry
	governor  *policy.Governor
	bucket    *quota.Bucket
	chain     *lockchain.Lockchain
	cfg       *config.Config
	profile   capability.OperatorProfile
	bodies    map[string]VerbBody
	agentID   string
	telemetry *telemetry.Metrics
}

// New builds a Driver over an already-frozen registry. profile is the
// operator context every admitted invocation is checked against; agentID
// tags every receipt this driver appends.
func New(reg *registry.Registry, governor *policy.Governor, bucket *quota.Bucket, chain *lockchain.Lockchain, cfg *config.Config, profile capability.OperatorProfile, agentID string) *Driver {
	return &Driver{
		reg:      reg,
		governor: governor,
		bucket:   bucket,
		chain:    chain,
		cfg:      cfg,
		profile:  profile,
		bodies:   make(map[string]VerbBody),
		agentID:  agentID,
	}
}

// WithTelemetry attaches a telemetry sink; every Finalize step after this
// call pushes invocation counts, latency, quota utilization, and
// lockchain length to it. A Driver with no sink attached skips emission
// entirely — telemetry is optional ambient instrumentation, not a
// correctness dependency of the pipeline.
func (d *Driver) WithTelemetry(m *telemetry.Metrics) *Driver {
	d.telemetry = m
	return d
}

// RegisterBody attaches an executable body to a verb path (e.g.
// []string{"pods", "list"}). Overwrites any previously registered body
// for the same path.
func (d *Driver) RegisterBody(verbPath []string, body VerbBody) {
	d.bodies[capabilityID(verbPath)] = body
}

// capabilityID is the stable string the Policy Governor and body
// registry key on: the verb path joined by "/", matching the suffix of
// the cnv: IRI the semantic store publishes for the same verb.
func capabilityID(verbPath []string) string {
	return strings.Join(verbPath, "/")
}

// Invoke runs one full Admit -> Quota -> Session -> Execute -> Finalize
// -> Respond pass for argv. onFrame, if non-nil, receives every frame the
// verb body emits during Execute.
func (d *Driver) Invoke(ctx context.Context, argv []string, onFrame func(session.Frame)) (Outcome, error) {
	log := logging.Get(logging.CategoryDriver)
	start := time.Now()
	traceID := uuid.NewString()

	// 1. Admit.
	resolved, err := d.reg.Resolve(argv)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve: %w", err)
	}
	contract := capability.PureContract()
	if resolved.Verb.CapabilityContract != nil {
		contract = *resolved.Verb.CapabilityContract
	}
	if !contract.IsCompatibleWithProfile(d.profile) {
		log.Warn("invocation rejected: not permitted", map[string]interface{}{"trace_id": traceID, "verb": resolved.VerbPath})
		return Outcome{}, ErrNotPermitted
	}

	capID := capabilityID(resolved.VerbPath)
	var warnings []string
	switch d.governor.State(capID) {
	case policy.Disabled, policy.ApprovalRequired:
		log.Warn("invocation blocked by policy", map[string]interface{}{"trace_id": traceID, "verb": resolved.VerbPath})
		return Outcome{}, ErrPolicyBlocked
	case policy.Deprecated:
		warnings = append(warnings, fmt.Sprintf("verb %q is deprecated", capID))
	}
	snapshot := d.governor.Snapshot(time.Now().Unix())

	// 2. Quota.
	est := d.cfg.ReservationFor(contract.ResourceBand)
	reservation, err := d.bucket.TryReserve(est.RuntimeMs, est.MemoryBytes, est.IOOps, est.NetworkBytes)
	if err != nil {
		var exhausted *quota.ExhaustedError
		if errors.As(err, &exhausted) {
			log.Warn("quota exhausted", map[string]interface{}{"trace_id": traceID, "axis": string(exhausted.Axis), "verb": resolved.VerbPath})
		}
		return Outcome{}, fmt.Errorf("quota: %w", err)
	}
	defer reservation.Release()

	// 3. Session.
	sessID := capID + "@" + snapshot.ContentHash[:8]
	sink := onFrame
	if d.telemetry != nil {
		sink = func(f session.Frame) {
			d.telemetry.RecordFrame(frameStreamName(f.StreamID))
			if onFrame != nil {
				onFrame(f)
			}
		}
	}
	sess := session.New(sessID, contract, sink)

	// 4. Execute.
	body, ok := d.bodies[capID]
	var result Result
	if !ok {
		result = Result{Err: ErrNoBody}
	} else {
		result = body(ctx, sess, resolved.ResidualArgs)
	}
	sess.Finish()

	// 5. Finalize.
	invocationHash := hashCanonical(canonicalInvocation{
		VerbPath:   resolved.VerbPath,
		Args:       resolved.ResidualArgs,
		SnapshotID: snapshot.ContentHash,
		AgentID:    d.agentID,
	})
	resultCanon := canonicalResult{Status: "ok"}
	if result.Err != nil {
		resultCanon.Status = "error"
		resultCanon.ErrorMsg = result.Err.Error()
	} else {
		resultCanon.Artifact = result.Artifact
	}
	resultHash := hashCanonical(resultCanon)

	receipt := lockchain.Receipt{
		InvocationHash: invocationHash,
		ResultHash:     resultHash,
		Metadata:       lockchain.ReceiptMetadata{AgentID: d.agentID, TraceID: traceID, Timestamp: time.Now().Unix()},
	}
	chainHash := d.chain.Append(receipt)

	// 6. Respond.
	status := "ok"
	if result.Err != nil {
		status = "error"
	}
	if d.telemetry != nil {
		d.telemetry.RecordInvocation(capID, status, contract.ResourceBand.String(), time.Since(start).Seconds())
		d.telemetry.SetQuotaUtilization(d.bucket.UtilizationPercent())
		d.telemetry.SetLockchainLength(d.chain.Len())
	}
	return Outcome{
		Status:           status,
		ReceiptChainHash: chainHash,
		Warnings:         warnings,
		Metrics:          sess.Metrics(),
	}, result.Err
}

func frameStreamName(s session.StreamID) string {
	switch s {
	case session.Stdout:
		return "stdout"
	case session.Stderr:
		return "stderr"
	case session.Log:
		return "log"
	case session.Progress:
		return "progress"
	case session.Result:
		return "result"
	default:
		return "unknown"
	}
}

func hashCanonical(v interface{}) lockchain.Hash {
	data, err := canonicalize(v)
	if err != nil {
		// canonicalize only ever marshals the two structs in canonical.go, both
		// built entirely from strings and slices of strings: an error
		// here means a programming mistake, not a runtime condition.
		panic(fmt.Sprintf("driver: canonicalize failed: %v", err))
	}
	h := blake3.New(32, nil)
	h.Write(data)
	var out lockchain.Hash
	copy(out[:], h.Sum(nil))
	return out
}
