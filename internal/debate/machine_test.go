package debate

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/llm"
)

func testState() *domain.DebateState {
	return &domain.DebateState{
		ClaimA:    domain.Claim{ID: "claim-a", Text: "Caffeine improves recall in adults."},
		ClaimB:    domain.Claim{ID: "claim-b", Text: "Stimulants disrupt memory consolidation."},
		EvidenceA: []domain.SearchResult{{ID: "e1", Text: "RCT shows improved recall after 200mg caffeine"}},
		EvidenceB: []domain.SearchResult{{ID: "e2", Text: "Sleep study shows consolidation disruption"}},
	}
}

func scriptedResponses() []string {
	return []string{
		"methodology assessment of both evidence pools",
		"skeptical challenge to the proposed relationship",
		"connecting mechanism via adenosine pathways",
		`{"verdict":"supports","confidence":88,"explanation":"strong converging evidence","citations":["e1","e2"]}`,
	}
}

func TestMachineRunsStagesInOrder(t *testing.T) {
	mock := llm.NewMockClient()
	mock.Responses = scriptedResponses()
	machine := NewMachine(mock, zap.NewNop())

	state := testState()
	if err := machine.Run(context.Background(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantStages := []string{
		domain.StageMethodologist,
		domain.StageSkeptic,
		domain.StageConnector,
		domain.StageSynthesizer,
	}
	if len(state.Outputs) != len(wantStages) {
		t.Fatalf("expected %d stage outputs, got %d", len(wantStages), len(state.Outputs))
	}
	for i, want := range wantStages {
		if state.Outputs[i].Stage != want {
			t.Errorf("stage %d: expected %s, got %s", i, want, state.Outputs[i].Stage)
		}
	}

	if state.Verdict == nil {
		t.Fatal("expected a verdict")
	}
	if state.Verdict.Relation != domain.RelationSupports {
		t.Errorf("expected supports, got %s", state.Verdict.Relation)
	}
	if math.Abs(state.Verdict.Confidence-0.88) > 1e-9 {
		t.Errorf("expected confidence 0.88, got %f", state.Verdict.Confidence)
	}
	if len(state.Verdict.Citations) != 2 {
		t.Errorf("expected 2 citations, got %d", len(state.Verdict.Citations))
	}
}

func TestMachineAccumulatesTranscript(t *testing.T) {
	mock := llm.NewMockClient()
	mock.Responses = scriptedResponses()
	machine := NewMachine(mock, zap.NewNop())

	state := testState()
	if err := machine.Run(context.Background(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.GenerateCalls) != 4 {
		t.Fatalf("expected 4 generation calls, got %d", len(mock.GenerateCalls))
	}

	// Later stages must see every earlier output.
	skepticPrompt := mock.GenerateCalls[1].Prompt
	if !strings.Contains(skepticPrompt, "methodology assessment of both evidence pools") {
		t.Error("skeptic prompt missing methodologist output")
	}

	synthPrompt := mock.GenerateCalls[3].Prompt
	for _, prior := range scriptedResponses()[:3] {
		if !strings.Contains(synthPrompt, prior) {
			t.Errorf("synthesizer prompt missing prior output %q", prior)
		}
	}
	for _, id := range []string{"e1", "e2"} {
		if !strings.Contains(synthPrompt, "["+id+"]") {
			t.Errorf("synthesizer prompt missing evidence id %s", id)
		}
	}
}

func TestMachineStageTemperatures(t *testing.T) {
	mock := llm.NewMockClient()
	mock.Responses = scriptedResponses()
	machine := NewMachine(mock, zap.NewNop())

	if err := machine.Run(context.Background(), testState()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float32{0.1, 0.3, 0.5, 0.2}
	for i, temp := range want {
		if mock.GenerateCalls[i].Temperature != temp {
			t.Errorf("stage %d: expected temperature %v, got %v", i, temp, mock.GenerateCalls[i].Temperature)
		}
	}
}

func TestMachineMalformedVerdict(t *testing.T) {
	cases := []struct {
		name  string
		synth string
	}{
		{"prose instead of JSON", "The relationship is clearly supportive."},
		{"unknown relation type", `{"verdict":"contradicts","confidence":80,"explanation":"x","citations":[]}`},
		{"confidence above range", `{"verdict":"supports","confidence":150,"explanation":"x","citations":[]}`},
		{"confidence below range", `{"verdict":"supports","confidence":-5,"explanation":"x","citations":[]}`},
		{"confidence missing", `{"verdict":"supports","explanation":"x","citations":[]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := llm.NewMockClient()
			mock.Responses = []string{"m", "s", "c", tc.synth}
			machine := NewMachine(mock, zap.NewNop())

			state := testState()
			err := machine.Run(context.Background(), state)
			if !errors.Is(err, ErrMalformedVerdict) {
				t.Fatalf("expected ErrMalformedVerdict, got %v", err)
			}
			if state.Verdict != nil {
				t.Error("expected no verdict on malformed output")
			}
			if len(state.Outputs) != 4 {
				t.Errorf("expected full transcript despite malformed verdict, got %d outputs", len(state.Outputs))
			}
		})
	}
}

// failingClient succeeds a fixed number of times, then fails.
type failingClient struct {
	succeed int
	calls   int
}

func (c *failingClient) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	c.calls++
	if c.calls > c.succeed {
		return "", errors.New("backend down")
	}
	return "stage output", nil
}

func (c *failingClient) GenerateStream(ctx context.Context, req domain.GenerateRequest) (<-chan domain.StreamDelta, error) {
	return nil, errors.New("backend down")
}

func TestMachineAbortsOnStageFailure(t *testing.T) {
	inner := &failingClient{succeed: 2}
	machine := NewMachine(inner, zap.NewNop())

	state := testState()
	err := machine.Run(context.Background(), state)
	if err == nil {
		t.Fatal("expected error from failing stage")
	}
	if errors.Is(err, ErrMalformedVerdict) {
		t.Error("stage failure must not be reported as a malformed verdict")
	}
	if inner.calls != 3 {
		t.Errorf("expected pipeline to stop at the failing stage, got %d calls", inner.calls)
	}
	if len(state.Outputs) != 2 {
		t.Errorf("expected 2 completed stage outputs, got %d", len(state.Outputs))
	}
	if state.Verdict != nil {
		t.Error("expected no verdict after aborted debate")
	}
}

// cancellingClient cancels the debate context from inside the first call.
type cancellingClient struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingClient) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	c.calls++
	c.cancel()
	return "stage output", nil
}

func (c *cancellingClient) GenerateStream(ctx context.Context, req domain.GenerateRequest) (<-chan domain.StreamDelta, error) {
	out := make(chan domain.StreamDelta)
	close(out)
	return out, nil
}

func TestMachineHonorsCancellationBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &cancellingClient{cancel: cancel}
	machine := NewMachine(inner, zap.NewNop())

	state := testState()
	err := machine.Run(ctx, state)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected no stage calls after cancellation, got %d", inner.calls)
	}
	if len(state.Outputs) != 1 {
		t.Errorf("expected 1 completed stage output, got %d", len(state.Outputs))
	}
}

func TestMachineStreamsToObserver(t *testing.T) {
	mock := llm.NewMockClient()
	mock.Responses = scriptedResponses()

	var stages []string
	var tokens []string
	machine := NewMachine(mock, zap.NewNop()).WithObserver(func(stage, token string) {
		if len(stages) == 0 || stages[len(stages)-1] != stage {
			stages = append(stages, stage)
		}
		tokens = append(tokens, token)
	})

	state := testState()
	if err := machine.Run(context.Background(), state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantStages := []string{
		domain.StageMethodologist,
		domain.StageSkeptic,
		domain.StageConnector,
		domain.StageSynthesizer,
	}
	if len(stages) != len(wantStages) {
		t.Fatalf("expected tokens from %d stages, got %v", len(wantStages), stages)
	}
	for i, want := range wantStages {
		if stages[i] != want {
			t.Errorf("stage %d: expected %s, got %s", i, want, stages[i])
		}
	}
	if strings.Join(tokens, "") != strings.Join(scriptedResponses(), "") {
		t.Error("concatenated tokens do not reproduce the stage outputs")
	}
	if state.Verdict == nil || state.Verdict.Relation != domain.RelationSupports {
		t.Error("expected streamed debate to reach the same verdict")
	}
}

func TestParseVerdict(t *testing.T) {
	v, err := parseVerdict("```json\n{\"verdict\":\"refutes\",\"confidence\":100,\"explanation\":\"direct contradiction\",\"citations\":null}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Relation != domain.RelationRefutes {
		t.Errorf("expected refutes, got %s", v.Relation)
	}
	if v.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", v.Confidence)
	}
	if v.Citations == nil || len(v.Citations) != 0 {
		t.Errorf("expected empty non-nil citations, got %v", v.Citations)
	}

	v, err = parseVerdict(`{"verdict":"uncertain","confidence":0,"explanation":"","citations":[]}`)
	if err != nil {
		t.Fatalf("zero confidence must be valid: %v", err)
	}
	if v.Confidence != 0 {
		t.Errorf("expected confidence 0, got %f", v.Confidence)
	}
}
