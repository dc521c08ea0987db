package models

// WorkflowNode is one stage of the review graph shown to reviewers.
type WorkflowNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type WorkflowEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Workflow is the display graph of the review process plus the node each
// case status highlights.
type Workflow struct {
	Nodes       []WorkflowNode        `json:"nodes"`
	Edges       []WorkflowEdge        `json:"edges"`
	StatusNodes map[CaseStatus]string `json:"statusNodes"`
}

// ReviewWorkflow returns the review graph. Ingestion shares the intake node;
// rejected cases stay on the decision node.
func ReviewWorkflow() Workflow {
	return Workflow{
		Nodes: []WorkflowNode{
			{ID: "intake", Label: "Intake"},
			{ID: "idv", Label: "Identity Verification"},
			{ID: "screen", Label: "Screening"},
			{ID: "decision", Label: "Decision"},
			{ID: "monitor", Label: "Monitoring"},
		},
		Edges: []WorkflowEdge{
			{From: "intake", To: "idv"},
			{From: "idv", To: "screen"},
			{From: "screen", To: "decision"},
			{From: "decision", To: "monitor"},
		},
		StatusNodes: map[CaseStatus]string{
			CaseStatusIntake:     "intake",
			CaseStatusIngestion:  "intake",
			CaseStatusIdentity:   "idv",
			CaseStatusScreening:  "screen",
			CaseStatusDecision:   "decision",
			CaseStatusMonitoring: "monitor",
			CaseStatusApproved:   "monitor",
			CaseStatusRejected:   "decision",
		},
	}
}
