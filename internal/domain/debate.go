package domain

// Debate stage names, in pipeline order.
const (
	StageMethodologist = "methodologist"
	StageSkeptic       = "skeptic"
	StageConnector     = "connector"
	StageSynthesizer   = "synthesizer"
)

// StageOutput is one stage's contribution to the debate transcript.
type StageOutput struct {
	Stage string `json:"stage"`
	Text  string `json:"text"`
}

// Verdict is the synthesizer's structured conclusion. Confidence is the raw
// model-reported value in [0,1]; calibration happens downstream.
type Verdict struct {
	Relation    RelationType `json:"relation_type"`
	Confidence  float64      `json:"confidence"`
	Explanation string       `json:"explanation"`
	Citations   []string     `json:"citations"`
}

// DebateState is the working record threaded through the debate machine.
// Each stage reads the accumulated state and appends exactly one output;
// stages see nothing outside this struct. Created per invocation, discarded
// after the resulting relationship is persisted.
type DebateState struct {
	ClaimA    Claim
	ClaimB    Claim
	EvidenceA []SearchResult
	EvidenceB []SearchResult
	Outputs   []StageOutput
	Verdict   *Verdict
}

// Evidence returns the combined evidence pool in stable order (A's results
// then B's).
func (s *DebateState) Evidence() []SearchResult {
	pool := make([]SearchResult, 0, len(s.EvidenceA)+len(s.EvidenceB))
	pool = append(pool, s.EvidenceA...)
	pool = append(pool, s.EvidenceB...)
	return pool
}

// EvidenceIDs returns the set of evidence ids actually supplied to the
// debate. Citations outside this set are never trusted.
func (s *DebateState) EvidenceIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, e := range s.Evidence() {
		ids[e.ID] = true
	}
	return ids
}

// Transcript flattens stage outputs into loggable lines.
func (s *DebateState) Transcript() []string {
	lines := make([]string, 0, len(s.Outputs))
	for _, out := range s.Outputs {
		lines = append(lines, out.Stage+": "+out.Text)
	}
	return lines
}
