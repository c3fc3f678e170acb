package auth

import "time"

// LoginFlow holds the transient state of one in-flight authorization
// code login. It is created when the browser is redirected to the
// provider and consumed exactly once on callback.
type LoginFlow struct {
	State        string      `json:"state"`
	Nonce        string      `json:"nonce"`
	CodeVerifier string      `json:"code_verifier"`
	Application  Application `json:"application"`
	ReturnTo     string      `json:"return_to,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// Expired reports whether the flow is past its deadline.
func (f *LoginFlow) Expired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}
