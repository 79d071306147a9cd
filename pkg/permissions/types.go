package permissions

import (
	"errors"
	"fmt"

	ssotypes "github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"
)

// Instance identifies an IAM Identity Center (SSO) instance.
type Instance struct {
	// ARN is the instance ARN.
	ARN string

	// IdentityStoreID is the identity store backing the instance.
	IdentityStoreID string
}

// Assignment binds a principal to a permission set on a target account.
type Assignment struct {
	InstanceARN       string
	AccountID         string
	PermissionSetARN  string
	PermissionSetName string
	PrincipalType     ssotypes.PrincipalType
	PrincipalID       string
}

// ErrPermissionSetNotFound indicates no permission set matched the
// requested name on any SSO instance.
var ErrPermissionSetNotFound = errors.New("permission set not found")

// ErrGroupNotFound indicates no identity store group matched the requested
// display name.
var ErrGroupNotFound = errors.New("group not found")

// AssignmentError indicates that an account assignment operation reached
// the FAILED terminal state.
type AssignmentError struct {
	Operation         string
	PermissionSetName string
	Reason            string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("account assignment %s failed for permission set %s: %s",
		e.Operation, e.PermissionSetName, e.Reason)
}
