// Package api provides the HTTP persistence API: conversations and their
// messages, served from any storage.Driver.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string
}
