package model

// IntentRequest is the wire form of a respondent intent
type IntentRequest struct {
	Type    string   `json:"type"`
	Answers []string `json:"answers,omitempty"`
	X       float64  `json:"x,omitempty"`
	Y       float64  `json:"y,omitempty"`
}
