package tenant

import "errors"

// Tenant errors are distinct from authorization denial so callers can map
// them to a different status (bad request rather than forbidden).
var (
	// ErrTenantRequired indicates the request carried no tenant claim.
	ErrTenantRequired = errors.New("tenant context required")

	// ErrTenantInvalid indicates the tenant claim was present but unusable.
	ErrTenantInvalid = errors.New("tenant context invalid")
)
