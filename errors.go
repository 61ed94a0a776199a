package pset

import "errors"

var (
	// ErrFieldNotFound is returned when a field name is not present in a set.
	ErrFieldNotFound = errors.New("field not found")
	// ErrTypeMismatch is returned when a typed getter is used on a field of another kind.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrInvalidName is returned for field, set, or producer names that are not identifiers.
	ErrInvalidName = errors.New("invalid name")
	// ErrDuplicateField is returned when a block declares the same field twice.
	ErrDuplicateField = errors.New("duplicate field declaration")
	// ErrShadowedField is returned under ShadowForbid when a declaration overrides an imported field.
	ErrShadowedField = errors.New("field shadows imported field")
	// ErrInvalidValue is returned for values that cannot be represented by their kind.
	ErrInvalidValue = errors.New("invalid value")

	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotRegistered     = errors.New("not registered")
	ErrSealed            = errors.New("registry is sealed")
	ErrUnknownModuleType = errors.New("unknown module type")

	// ErrSyntax wraps diagnostics from the HCL parser.
	ErrSyntax = errors.New("configuration syntax error")
	// ErrUnknownFormat is returned by Encode and Decode for unsupported document formats.
	ErrUnknownFormat = errors.New("unknown document format")
	// ErrMissingField is returned by DecodeStrict when a target field has no source field.
	ErrMissingField = errors.New("missing required field")
)
