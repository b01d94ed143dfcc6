package domain

import "encoding/json"

// PaperSnapshot is a paper as described to a remote service.
type PaperSnapshot struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Authors  []string `json:"authors"`
	DOI      string   `json:"doi,omitempty"`
}

// PaperData is the paper_data object of a paper analysis request.
type PaperData struct {
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Authors  []string `json:"authors"`
	DOI      string   `json:"doi,omitempty"`
}

// Callback tells a remote service where to post an asynchronous result.
type Callback struct {
	CallbackURL   string `json:"callback_url,omitempty"`
	CallbackToken string `json:"callback_token,omitempty"`
}

// PaperAnalysisRequest is the body of POST /agents/analyze-paper.
type PaperAnalysisRequest struct {
	TaskID     string          `json:"task_id"`
	PaperID    string          `json:"paper_id"`
	PaperData  PaperData       `json:"paper_data"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Callback
}

// AggregateRequest is the body of the project-wide endpoints
// (generate-review, analyze-trends, analyze-gaps).
type AggregateRequest struct {
	TaskID     string          `json:"task_id"`
	ProjectID  string          `json:"project_id"`
	Parameters json.RawMessage `json:"parameters"`
	Papers     []PaperSnapshot `json:"papers"`
	Callback
}

// RemoteState is how a remote service reported a submission.
type RemoteState string

// Remote states.
const (
	// RemoteAccepted means the work continues remotely and the result will be
	// delivered later.
	RemoteAccepted RemoteState = "accepted"
	// RemoteSucceeded means Results holds the final analysis.
	RemoteSucceeded RemoteState = "succeeded"
	// RemoteFailed means the service declared the analysis failed.
	RemoteFailed RemoteState = "failed"
)

// RemoteResponse is a decoded result document from a remote service,
// either returned synchronously from a submission or posted to a callback.
type RemoteResponse struct {
	RemoteTaskID string
	State        RemoteState
	AgentUsed    string
	// Results is never empty when State is RemoteSucceeded.
	Results json.RawMessage
	// Analysis holds projected paper fields when the service returned any.
	Analysis *PaperAnalysis
	// Error is the remote failure description when State is RemoteFailed.
	Error string
}
