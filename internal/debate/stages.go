package debate

import (
	"fmt"
	"strings"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

const stageMaxTokens = 1024

// stage is one persona in the debate. Stages are pure request/response: the
// prompt is built from the accumulated state, and the output is appended to
// the transcript before the next stage runs.
type stage struct {
	name        string
	temperature float32
	system      string
	prompt      func(state *domain.DebateState) string
}

// debateStages returns the fixed pipeline. Order is part of the contract:
// methodology first, challenge second, connection third, synthesis last.
func debateStages() []stage {
	return []stage{
		{
			name:        domain.StageMethodologist,
			temperature: 0.1,
			system:      methodologistSystem,
			prompt: func(s *domain.DebateState) string {
				return fmt.Sprintf(methodologistPrompt,
					s.ClaimA.Text, formatEvidence(s.EvidenceA),
					s.ClaimB.Text, formatEvidence(s.EvidenceB))
			},
		},
		{
			name:        domain.StageSkeptic,
			temperature: 0.3,
			system:      skepticSystem,
			prompt: func(s *domain.DebateState) string {
				return fmt.Sprintf(skepticPrompt,
					s.ClaimA.Text, s.ClaimB.Text,
					formatEvidence(s.Evidence()), formatTranscript(s))
			},
		},
		{
			name:        domain.StageConnector,
			temperature: 0.5,
			system:      connectorSystem,
			prompt: func(s *domain.DebateState) string {
				return fmt.Sprintf(connectorPrompt,
					s.ClaimA.Text, s.ClaimB.Text,
					formatEvidence(s.Evidence()), formatTranscript(s))
			},
		},
		{
			name:        domain.StageSynthesizer,
			temperature: 0.2,
			system:      synthesizerSystem,
			prompt: func(s *domain.DebateState) string {
				return fmt.Sprintf(synthesizerPrompt,
					s.ClaimA.Text, s.ClaimB.Text,
					formatEvidence(s.Evidence()), formatTranscript(s))
			},
		},
	}
}

func formatEvidence(results []domain.SearchResult) string {
	if len(results) == 0 {
		return "(no evidence retrieved)\n"
	}
	var sb strings.Builder
	for _, res := range results {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", res.ID, res.Text))
	}
	return sb.String()
}

func formatTranscript(state *domain.DebateState) string {
	lines := state.Transcript()
	if len(lines) == 0 {
		return "(no prior arguments)\n"
	}
	return strings.Join(lines, "\n\n") + "\n"
}
