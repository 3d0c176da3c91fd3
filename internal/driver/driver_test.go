package driver

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/goleak"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
	"github.com/seanchatmangpt/autonomic-cli/internal/config"
	"github.com/seanchatmangpt/autonomic-cli/internal/grammar"
	"github.com/seanchatmangpt/autonomic-cli/internal/lockchain"
	"github.com/seanchatmangpt/autonomic-cli/internal/policy"
	"github.com/seanchatmangpt/autonomic-cli/internal/quota"
	"github.com/seanchatmangpt/autonomic-cli/internal/registry"
	"github.com/seanchatmangpt/autonomic-cli/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestDriver(t *testing.T, contract capability.Contract) (*Driver, *registry.Registry) {
	t.Helper()
	reg := registry.New("demo")
	ro := contract
	if err := reg.RegisterNoun(grammar.Noun{
		Name: "pods",
		Verbs: []grammar.Verb{
			{Name: "list", CapabilityContract: &ro},
		},
	}); err != nil {
		t.Fatalf("RegisterNoun failed: %v", err)
	}
	reg.BuildParser()

	governor := policy.NewGovernor([]string{"pods/list"})
	bucket := quota.New(quota.Limits{Runtime: 10_000, Memory: 10 << 20, IO: 10_000, Network: 10 << 20, Concurrency: 4})
	chain := lockchain.New()
	cfg := config.DefaultConfig()

	d := New(reg, governor, bucket, chain, cfg, capability.AgentProfile(), "test-agent")
	return d, reg
}

func TestInvokeHappyPathAppendsReceipt(t *testing.T) {
	ro := capability.ReadOnly()
	d, _ := newTestDriver(t, ro)

	var frames []session.Frame
	d.RegisterBody([]string{"pods", "list"}, func(ctx context.Context, sess *session.Session, args []string) Result {
		sess.YieldData(session.Stdout, []byte("pod-a"))
		return Result{Artifact: "pod-a"}
	})

	outcome, err := d.Invoke(context.Background(), []string{"pods", "list"}, func(f session.Frame) {
		frames = append(frames, f)
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if outcome.Status != "ok" {
		t.Errorf("expected ok status, got %q", outcome.Status)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame forwarded, got %d", len(frames))
	}
	if outcome.Metrics.FramesSent != 1 {
		t.Errorf("expected metrics to report 1 frame, got %d", outcome.Metrics.FramesSent)
	}

	chain := d.chain
	if chain.Len() != 1 {
		t.Fatalf("expected 1 lockchain entry, got %d", chain.Len())
	}
	if !chain.Verify() {
		t.Error("expected chain to verify")
	}
	entry, _ := chain.Latest()
	if entry.ChainHash != outcome.ReceiptChainHash {
		t.Error("outcome chain hash must match the appended entry")
	}
}

func TestInvokeRejectsIncompatibleProfile(t *testing.T) {
	dangerous := capability.DangerousContract()
	d, _ := newTestDriver(t, dangerous)
	d.RegisterBody([]string{"pods", "list"}, func(ctx context.Context, sess *session.Session, args []string) Result {
		return Result{Artifact: "should-not-run"}
	})

	_, err := d.Invoke(context.Background(), []string{"pods", "list"}, nil)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("expected ErrNotPermitted, got %v", err)
	}
	if d.chain.Len() != 0 {
		t.Error("rejected invocation must not append a receipt")
	}
}

func TestInvokeBlockedByDisabledPolicy(t *testing.T) {
	ro := capability.ReadOnly()
	d, _ := newTestDriver(t, ro)
	if _, err := d.governor.Apply(policy.Delta{Kind: policy.DisableDelta, CapabilityID: "pods/list"}); err != nil {
		t.Fatalf("Apply(DisableDelta) failed: %v", err)
	}

	_, err := d.Invoke(context.Background(), []string{"pods", "list"}, nil)
	if !errors.Is(err, ErrPolicyBlocked) {
		t.Fatalf("expected ErrPolicyBlocked, got %v", err)
	}
}

func TestInvokeQuotaExhaustionReleasesNoPartialState(t *testing.T) {
	ro := capability.ReadOnly()
	reg := registry.New("demo")
	c := ro
	if err := reg.RegisterNoun(grammar.Noun{Name: "pods", Verbs: []grammar.Verb{{Name: "list", CapabilityContract: &c}}}); err != nil {
		t.Fatalf("RegisterNoun failed: %v", err)
	}
	reg.BuildParser()

	governor := policy.NewGovernor([]string{"pods/list"})
	bucket := quota.New(quota.Limits{Runtime: 0, Memory: 0, IO: 0, Network: 0, Concurrency: 0})
	chain := lockchain.New()
	cfg := config.DefaultConfig()
	d := New(reg, governor, bucket, chain, cfg, capability.AgentProfile(), "test-agent")

	_, err := d.Invoke(context.Background(), []string{"pods", "list"}, nil)
	var exhausted *quota.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected quota ExhaustedError, got %v", err)
	}
	if chain.Len() != 0 {
		t.Error("quota-rejected invocation must not append a receipt")
	}
}

func TestInvokeMissingBodyStillRecordsReceipt(t *testing.T) {
	ro := capability.ReadOnly()
	d, _ := newTestDriver(t, ro)

	outcome, err := d.Invoke(context.Background(), []string{"pods", "list"}, nil)
	if !errors.Is(err, ErrNoBody) {
		t.Fatalf("expected ErrNoBody, got %v", err)
	}
	if outcome.Status != "error" {
		t.Errorf("expected error status, got %q", outcome.Status)
	}
	if d.chain.Len() != 1 {
		t.Fatal("a verb with no body is still a completed invocation and must record a receipt")
	}
}

func TestInvokeDeprecatedVerbAttachesWarning(t *testing.T) {
	ro := capability.ReadOnly()
	d, _ := newTestDriver(t, ro)
	if _, err := d.governor.Apply(policy.Delta{Kind: policy.DeprecateDelta, CapabilityID: "pods/list"}); err != nil {
		t.Fatalf("Apply(DeprecateDelta) failed: %v", err)
	}
	d.RegisterBody([]string{"pods", "list"}, func(ctx context.Context, sess *session.Session, args []string) Result {
		return Result{Artifact: "ok"}
	})

	outcome, err := d.Invoke(context.Background(), []string{"pods", "list"}, nil)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if len(outcome.Warnings) != 1 {
		t.Fatalf("expected 1 warning for deprecated verb, got %+v", outcome.Warnings)
	}
}

func TestInvokeDeterministicHashingAcrossIdenticalRuns(t *testing.T) {
	ro := capability.ReadOnly()
	d1, _ := newTestDriver(t, ro)
	d2, _ := newTestDriver(t, ro)
	body := func(ctx context.Context, sess *session.Session, args []string) Result {
		return Result{Artifact: "fixed"}
	}
	d1.RegisterBody([]string{"pods", "list"}, body)
	d2.RegisterBody([]string{"pods", "list"}, body)
	d1.agentID = "same-agent"
	d2.agentID = "same-agent"

	o1, err1 := d1.Invoke(context.Background(), []string{"pods", "list"}, nil)
	o2, err2 := d2.Invoke(context.Background(), []string{"pods", "list"}, nil)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if o1.ReceiptChainHash != o2.ReceiptChainHash {
		t.Error("identical invocations against fresh drivers with the same snapshot content should hash identically")
	}
}
