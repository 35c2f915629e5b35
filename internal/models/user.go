// Package models defines the configuration and measurement records shared by
// the credential store, the source and destination sessions, and the encoder.
package models

// DefaultScaleModel is the device model assumed when a user record does not
// name one.
const DefaultScaleModel = "yunmai.scales.ms103"

// SourceToken is the cached session material issued by the source account
// cloud. UserID, PassToken and SSecurity come from the interactive login and
// survive between runs; ServiceToken is per-session and never persisted.
type SourceToken struct {
	UserID       string `json:"userId"`
	PassToken    string `json:"passToken"`
	SSecurity    string `json:"ssecurity"`
	ServiceToken string `json:"-"`
}

// Complete reports whether all three persisted fields are present. A token
// missing any of them cannot be validated and the user is skipped.
func (t SourceToken) Complete() bool {
	return t.UserID != "" && t.PassToken != "" && t.SSecurity != ""
}

// GarminCredentials is the destination account login material. Domain selects
// the SSO host ("CN" or "COM"); it defaults to "CN" when empty.
type GarminCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Domain   string `json:"domain"`
}

func (c GarminCredentials) Complete() bool {
	return c.Email != "" && c.Password != ""
}

// User is one configured account pairing: a source account to read from and,
// optionally, a destination account to upload to.
type User struct {
	Username string            `json:"username"`
	Password string            `json:"password,omitempty"`
	Model    string            `json:"model,omitempty"`
	Token    SourceToken       `json:"token"`
	Garmin   GarminCredentials `json:"garmin"`
}

// Actionable reports whether the user can be processed at all: a non-empty
// identifier and a structurally complete source token.
func (u *User) Actionable() bool {
	return u.Username != "" && u.Token.Complete()
}

// ScaleModel returns the configured device model, falling back to the default.
func (u *User) ScaleModel() string {
	if u.Model == "" {
		return DefaultScaleModel
	}
	return u.Model
}
