package flows

import "time"

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each public method to the matching flow function.
type Deps struct {
	Login     LoginDeps
	Logout    LogoutDeps
	Resolve   ResolveDeps
	Federated FederatedDeps
	Password  PasswordDeps
	Account   AccountDeps
}

// CredentialRecord is the flow-local credential model. The engine maps the
// host store's records into this shape at the boundary.
type CredentialRecord struct {
	SubjectID    string
	Username     string
	Email        string
	OrgID        string
	FederatedID  string
	PasswordHash string
	Salt         []byte
	Algorithm    string
	Active       bool
	Disabled     bool
	RegisteredAt time.Time
}
