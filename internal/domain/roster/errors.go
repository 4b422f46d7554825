package roster

import "errors"

var (
	ErrNameRequired       = errors.New("name is required")
	ErrDuplicateName      = errors.New("a person with this name is already registered")
	ErrUserNotFound       = errors.New("person not found in registry")
	ErrDepartmentRequired = errors.New("department is required")
	ErrUnknownDepartment  = errors.New("department does not exist")
	ErrDepartmentExists   = errors.New("department already exists")
	ErrInvalidSecret      = errors.New("department secret is invalid")
)
