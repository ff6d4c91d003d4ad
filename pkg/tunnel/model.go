package model

// State is a tunnel lifecycle state
type State string

const (
	StateOff        State = "off"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateError      State = "error"
)

// Status is a snapshot of the tunnel manager
type Status struct {
	State State `json:"state"`
	// URL is set only while State is connected
	URL string `json:"url,omitempty"`
	// Message carries the last failure, or why a session closed
	Message  string `json:"message,omitempty"`
	Attempt  int    `json:"attempt"`
	Provider string `json:"provider"`
	// ExternalURL is an operator supplied address the manager does not own
	ExternalURL string `json:"externalUrl,omitempty"`
}

// PublicURL is the address to display: the external override if any, else the
// managed tunnel URL.
func (s Status) PublicURL() string {
	if s.ExternalURL != "" {
		return s.ExternalURL
	}
	return s.URL
}

// StatusResponse is the body of GET /tunnel/status
type StatusResponse struct {
	Running     bool    `json:"running"`
	URL         *string `json:"url"`
	State       State   `json:"state"`
	Message     string  `json:"message,omitempty"`
	ExternalURL string  `json:"externalUrl,omitempty"`
}

// StartResult is the body of POST /tunnel/start
type StartResult struct {
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
	State   State  `json:"state"`
}

// SetURLParams is the body of POST /tunnel/url
type SetURLParams struct {
	URL string `json:"url"`
}

// SetURLResult confirms an external URL override
type SetURLResult struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}
