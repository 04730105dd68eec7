package onboarding

import "fmt"

// Stage names the provisioning step that failed, so operators and retry
// logic can tell a pre-checkpoint failure from a post-checkpoint one.
type Stage string

const (
	StageCustomer   Stage = "customer"
	StageAccount    Stage = "account"
	StageActivation Stage = "activation"
)

// ProvisioningError marks a collaborator failure during approval. The
// application stays PENDING (with a customer checkpoint once StageCustomer
// has succeeded) and the decision can be retried.
type ProvisioningError struct {
	Stage Stage
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s stage: %v", e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }
