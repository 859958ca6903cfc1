package ren

// None is the none value, the runtime's deliberate "nothing here".
type None struct{ Value }

// NewNone creates a none value bound to the engine resolved by the
// registered finder.
func NewNone() (None, error) {
	e, err := CurrentEngine()
	if err != nil {
		return None{}, err
	}
	return e.NewNone(), nil
}

// NewNone creates a none value bound to e.
func (e *Engine) NewNone() None {
	var v Value
	e.rt.SetNone(e.handle, &v.cell)
	v.finishInit(e)
	return None{v}
}

// IsValid reports whether the value is the none value.
func (n None) IsValid() bool { return n.IsNone() }
