package accounts

import (
	"fmt"

	sctypes "github.com/aws/aws-sdk-go-v2/service/servicecatalog/types"
)

// CreateAccountInput describes a new Control Tower account to provision
// through the account factory product.
type CreateAccountInput struct {
	// Name is the name of the new account.
	Name string

	// Email is the root email address for the new account.
	Email string

	// OrgUnit is the organizational unit to place the account in.
	OrgUnit string

	// SSOUserEmail is the email of the initial SSO user.
	SSOUserEmail string

	// SSOUserFirstName is the first name of the initial SSO user.
	SSOUserFirstName string

	// SSOUserLastName is the last name of the initial SSO user.
	SSOUserLastName string
}

func (in CreateAccountInput) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"account name", in.Name},
		{"account email", in.Email},
		{"organizational unit", in.OrgUnit},
		{"SSO user email", in.SSOUserEmail},
		{"SSO user first name", in.SSOUserFirstName},
		{"SSO user last name", in.SSOUserLastName},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}
	return nil
}

// Record is the terminal state of a Service Catalog record observed after
// polling a provisioning or termination request.
type Record struct {
	// ID is the Service Catalog record ID.
	ID string

	// ProvisionedProductID is the provisioned product the record belongs to.
	ProvisionedProductID string

	// Status is the terminal record status (SUCCEEDED or FAILED).
	Status sctypes.RecordStatus
}
