package certificates

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNotApproved    = errors.New("registration is not approved")
	ErrAlreadyIssued  = errors.New("certificate already issued for registration")
	ErrNothingToIssue = errors.New("no approved registrations")
	ErrRender         = errors.New("render certificate")
	ErrStorage        = errors.New("store certificate")
	ErrPersist        = errors.New("persist certificate")
)
