package models

type DocumentResponse struct {
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	FailedStage string `json:"failed_stage,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
	Warning     string `json:"warning,omitempty"`
	OutputName  string `json:"output_name,omitempty"`
}

type BatchResponse struct {
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Documents []DocumentResponse `json:"documents"`
}

type SessionResponse struct {
	SessionID string             `json:"session_id"`
	Documents []DocumentResponse `json:"documents"`
}

type SessionProfilesResponse struct {
	SessionID string                      `json:"session_id"`
	Profiles  map[string]CandidateProfile `json:"profiles"`
	Order     []string                    `json:"order"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
