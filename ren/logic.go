package ren

// Logic is a boolean value.
type Logic struct{ Value }

// NewLogic creates a logic value bound to the engine resolved by the
// registered finder.
func NewLogic(b bool) (Logic, error) {
	e, err := CurrentEngine()
	if err != nil {
		return Logic{}, err
	}
	return e.NewLogic(b), nil
}

// NewLogic creates a logic value bound to e.
func (e *Engine) NewLogic(b bool) Logic {
	var v Value
	e.rt.SetLogic(e.handle, &v.cell, b)
	v.finishInit(e)
	return Logic{v}
}

// IsValid reports whether the value is a logic.
func (l Logic) IsValid() bool { return l.IsLogic() }

// Bool reads the boolean payload directly, without revalidating the
// tag. Callers are expected to have checked IsValid first; reading a
// value that is not a logic is a contract violation.
func (l Logic) Bool() bool {
	return l.engine.rt.Logic(l.engine.handle, &l.cell)
}
