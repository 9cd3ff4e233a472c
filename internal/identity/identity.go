// Package identity resolves third-party sign-ins (Google OAuth, magic-link
// email) into local user accounts. Accounts are keyed by email so a user
// arriving through a second provider lands on the same record.
package identity

// Profile is the verified identity returned by a provider.
type Profile struct {
	Provider string // Provider key: "google" or "magic".
	Subject  string // Provider-scoped stable subject ID.
	Email    string // Verified email address.
	Name     string // Display name, may be empty.
}
