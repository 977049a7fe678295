package domain

// ContradictionPair is a claim pair connected by at least one qualifying
// refutes edge. When edges of opposite relation type coexist between the
// same pair, all of them are reported rather than resolved; resolution is a
// human decision.
type ContradictionPair struct {
	ClaimAID string         `json:"claim_a_id"`
	ClaimBID string         `json:"claim_b_id"`
	Edges    []Relationship `json:"edges"`
}

// GraphExportNode is a claim rendered for the presentation layer. Text is
// truncated; Importance is the PageRank centrality from the last metrics
// refresh.
type GraphExportNode struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Type       ClaimType `json:"type"`
	Importance float64   `json:"importance"`
}

type GraphExportEdge struct {
	From       string       `json:"from"`
	To         string       `json:"to"`
	Relation   RelationType `json:"relation"`
	Confidence float64      `json:"confidence"`
}

type GraphExport struct {
	Nodes []GraphExportNode `json:"nodes"`
	Edges []GraphExportEdge `json:"edges"`
}
