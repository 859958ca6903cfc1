package ren

// Float is a decimal value.
type Float struct{ Value }

// NewFloat creates a decimal value bound to the engine resolved by the
// registered finder.
func NewFloat(f float64) (Float, error) {
	e, err := CurrentEngine()
	if err != nil {
		return Float{}, err
	}
	return e.NewFloat(f), nil
}

// NewFloat creates a decimal value bound to e.
func (e *Engine) NewFloat(f float64) Float {
	var v Value
	e.rt.SetDecimal(e.handle, &v.cell, f)
	v.finishInit(e)
	return Float{v}
}

// IsValid reports whether the value is a decimal.
func (f Float) IsValid() bool { return f.IsFloat() }

// Float64 extracts the decimal payload. It panics if the value is not
// a decimal; callers are expected to have checked IsValid.
func (f Float) Float64() float64 {
	if !f.IsFloat() {
		panic("ren: Float64 called on a value that is not a decimal")
	}
	return f.engine.rt.Decimal(f.engine.handle, &f.cell)
}
