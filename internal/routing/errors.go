package routing

import "fmt"

// ConfigurationError marks a company setup problem the caller must fix
// before optimizing again; it is never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// ErrNoTechnicians is returned when a company has no technicians to route.
var ErrNoTechnicians = &ConfigurationError{Reason: "no technicians configured for company"}

// SolverRejection means the solver judged the submitted model infeasible or
// the response failed structural validation. Inputs must change before a
// retry can succeed.
type SolverRejection struct {
	Reason string
}

func (e *SolverRejection) Error() string {
	return "solver rejected request: " + e.Reason
}

// TransportError is a network failure or non-2xx HTTP status reaching the
// solver. Safe to retry with backoff at the caller's discretion.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("solver transport error: http status %d", e.StatusCode)
	}
	return "solver transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
