package models

// SecurityVerdict is the terminal decision of the input security gate.
type SecurityVerdict struct {
	Safe            bool     `json:"safe"`
	Reason          string   `json:"reason"`
	MatchedPatterns []string `json:"matched_patterns,omitempty"`
}

// OutputVerdict is the decision of the post-generation output gate.
type OutputVerdict struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback"`
	Category string `json:"category"`
}
