package credentials

// Credentials represents the stored account credentials in credentials.toml.
type Credentials struct {
	Version  int                `toml:"version"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile holds the bearer token and the account it was issued to.
type Profile struct {
	Token  string `toml:"token"`
	UserID string `toml:"user_id,omitempty"`
}
