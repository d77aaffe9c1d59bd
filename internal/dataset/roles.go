package dataset

import (
	"autouplift/internal/errors"
)

// Well-known role names
const (
	RoleTarget    = "target"
	RoleTreatment = "treatment"
)

// Roles maps a role name to the column carrying it
type Roles map[string]string

// Clone returns an independent copy of the roles mapping
func (r Roles) Clone() Roles {
	out := make(Roles, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Without returns a copy of the roles mapping with a role removed
func (r Roles) Without(role string) Roles {
	out := r.Clone()
	delete(out, role)
	return out
}

// TargetColumn returns the column holding the target role
func (r Roles) TargetColumn() (string, error) {
	col, ok := r[RoleTarget]
	if !ok {
		return "", errors.Newf(errors.ErrCodeMissingRole, "roles mapping has no %q role", RoleTarget)
	}
	return col, nil
}

// TreatmentColumn returns the column holding the treatment role
func (r Roles) TreatmentColumn() (string, error) {
	col, ok := r[RoleTreatment]
	if !ok {
		return "", errors.Newf(errors.ErrCodeMissingRole, "roles mapping has no %q role", RoleTreatment)
	}
	return col, nil
}

// Validate checks that the mandatory roles are present and point at
// columns that exist in the frame
func (r Roles) Validate(f *Frame) error {
	for _, role := range []string{RoleTarget, RoleTreatment} {
		col, ok := r[role]
		if !ok {
			return errors.Newf(errors.ErrCodeMissingRole, "roles mapping has no %q role", role)
		}
		if !f.HasColumn(col) {
			return errors.Newf(errors.ErrCodeMissingColumn,
				"role %q points at missing column %q", role, col)
		}
	}
	return nil
}
