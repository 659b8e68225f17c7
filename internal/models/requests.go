package models

// APIResponse is the standard envelope for every REST response.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// RunTaskResult is returned by the on-demand trigger endpoint.
type RunTaskResult struct {
	JobID string `json:"jobId"`
}

// AgentList is returned by the connected-agents endpoint.
type AgentList struct {
	Agents []string `json:"agents"`
	Total  int      `json:"total"`
}
