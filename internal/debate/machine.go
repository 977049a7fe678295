package debate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

// ErrMalformedVerdict means the synthesizer produced output that does not
// parse into a valid verdict. This is a data-quality failure, never silently
// repaired: no retries, no default verdict.
var ErrMalformedVerdict = errors.New("malformed verdict")

// TokenObserver receives generation tokens as stages stream them.
type TokenObserver func(stage, token string)

// Machine runs the four-stage debate pipeline over a DebateState. Stages run
// strictly in order, each appending one output; the synthesizer's output is
// parsed into the verdict. The machine itself holds no per-debate state, so
// one Machine serves concurrent debates.
type Machine struct {
	gen      domain.GenerationClient
	logger   *zap.Logger
	observer TokenObserver
}

func NewMachine(gen domain.GenerationClient, logger *zap.Logger) *Machine {
	return &Machine{gen: gen, logger: logger}
}

// WithObserver returns a machine that streams stage tokens to obs. The
// underlying generation client and logger are shared.
func (m *Machine) WithObserver(obs TokenObserver) *Machine {
	clone := *m
	clone.observer = obs
	return &clone
}

// Run executes all stages against state. Cancellation is honored between
// stages; a cancelled debate leaves state partially filled and persists
// nothing here. Any stage failure aborts the remaining stages.
func (m *Machine) Run(ctx context.Context, state *domain.DebateState) error {
	for _, st := range debateStages() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		out, err := m.runStage(ctx, st, state)
		if err != nil {
			return fmt.Errorf("%s stage: %w", st.name, err)
		}
		state.Outputs = append(state.Outputs, domain.StageOutput{Stage: st.name, Text: out})
		m.logger.Debug("debate stage complete",
			zap.String("stage", st.name),
			zap.Int("output_chars", len(out)))
	}

	verdict, err := parseVerdict(state.Outputs[len(state.Outputs)-1].Text)
	if err != nil {
		return err
	}
	state.Verdict = verdict
	return nil
}

func (m *Machine) runStage(ctx context.Context, st stage, state *domain.DebateState) (string, error) {
	req := domain.GenerateRequest{
		System:      st.system,
		Prompt:      st.prompt(state),
		Temperature: st.temperature,
		MaxTokens:   stageMaxTokens,
	}

	if m.observer == nil {
		return m.gen.Generate(ctx, req)
	}

	stream, err := m.gen.GenerateStream(ctx, req)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for delta := range stream {
		if delta.Err != nil {
			return "", delta.Err
		}
		sb.WriteString(delta.Content)
		m.observer(st.name, delta.Content)
	}
	return strings.TrimSpace(sb.String()), nil
}

// parseVerdict decodes the synthesizer output. Unknown relation types and
// out-of-range confidence are malformed, not clamped.
func parseVerdict(raw string) (*domain.Verdict, error) {
	// Strip markdown fences if present
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var payload struct {
		Verdict     string   `json:"verdict"`
		Confidence  *float64 `json:"confidence"`
		Explanation string   `json:"explanation"`
		Citations   []string `json:"citations"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v (raw: %s)", ErrMalformedVerdict, err, raw)
	}

	if !domain.ValidRelationType(payload.Verdict) {
		return nil, fmt.Errorf("%w: unknown relation type %q", ErrMalformedVerdict, payload.Verdict)
	}
	if payload.Confidence == nil || *payload.Confidence < 0 || *payload.Confidence > 100 {
		return nil, fmt.Errorf("%w: confidence missing or outside 0-100", ErrMalformedVerdict)
	}

	citations := payload.Citations
	if citations == nil {
		citations = []string{}
	}

	return &domain.Verdict{
		Relation:    domain.RelationType(payload.Verdict),
		Confidence:  *payload.Confidence / 100.0,
		Explanation: payload.Explanation,
		Citations:   citations,
	}, nil
}
