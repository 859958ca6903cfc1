package ren

// Integer is a signed 64-bit integer value.
type Integer struct{ Value }

// NewInteger creates an integer value bound to the engine resolved by
// the registered finder.
func NewInteger(i int64) (Integer, error) {
	e, err := CurrentEngine()
	if err != nil {
		return Integer{}, err
	}
	return e.NewInteger(i), nil
}

// NewInteger creates an integer value bound to e.
func (e *Engine) NewInteger(i int64) Integer {
	var v Value
	e.rt.SetInteger(e.handle, &v.cell, i)
	v.finishInit(e)
	return Integer{v}
}

// IsValid reports whether the value is an integer.
func (i Integer) IsValid() bool { return i.IsInteger() }

// Int extracts the integer payload. It panics if the value is not an
// integer; callers are expected to have checked IsValid.
func (i Integer) Int() int64 {
	if !i.IsInteger() {
		panic("ren: Int called on a value that is not an integer")
	}
	return i.engine.rt.Integer(i.engine.handle, &i.cell)
}
