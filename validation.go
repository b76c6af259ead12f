package ustack

import "errors"

// Validator accumulates errors found while inspecting a frame so that several
// fields can be checked without early returns. The zero value is ready to use.
type Validator struct {
	allowMultiErrs bool
	accum          []error
}

// AddError appends err to the accumulated errors. Subsequent errors after the
// first are discarded unless multi-error accumulation is enabled.
func (v *Validator) AddError(err error) {
	if len(v.accum) != 0 && !v.allowMultiErrs {
		return
	}
	v.accum = append(v.accum, err)
}

// HasError returns true if any error has been accumulated.
func (v *Validator) HasError() bool { return len(v.accum) > 0 }

// Err returns the accumulated error(s) without resetting the validator.
func (v *Validator) Err() error {
	switch len(v.accum) {
	case 0:
		return nil
	case 1:
		return v.accum[0]
	}
	return errors.Join(v.accum...)
}

// ErrPop returns the accumulated error(s) and resets the validator.
func (v *Validator) ErrPop() error {
	err := v.Err()
	v.ResetErr()
	return err
}

// ResetErr discards accumulated errors.
func (v *Validator) ResetErr() {
	v.accum = v.accum[:0]
}
