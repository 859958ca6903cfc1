package ren

// Unset is the unset value: the absence of a useful result, distinct
// from the none value.
type Unset struct{ Value }

// NewUnset creates an unset value bound to the engine resolved by the
// registered finder.
func NewUnset() (Unset, error) {
	e, err := CurrentEngine()
	if err != nil {
		return Unset{}, err
	}
	return e.NewUnset(), nil
}

// NewUnset creates an unset value bound to e.
func (e *Engine) NewUnset() Unset {
	var v Value
	e.rt.SetUnset(e.handle, &v.cell)
	v.finishInit(e)
	return Unset{v}
}

// IsValid reports whether the value is the unset value.
func (u Unset) IsValid() bool { return u.IsUnset() }
