package awsclient

import "fmt"

// AuthorizationError indicates that assuming a role was rejected. It is
// never retried by the factory; assumption failures are rarely transient.
type AuthorizationError struct {
	RoleARN string
	Err     error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("failed to assume role %s: %v", e.RoleARN, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}
