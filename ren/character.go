package ren

import "fmt"

// Character is a single codepoint value.
type Character struct{ Value }

// NewChar creates a character value bound to the engine resolved by the
// registered finder.
func NewChar(r rune) (Character, error) {
	e, err := CurrentEngine()
	if err != nil {
		return Character{}, err
	}
	return e.NewChar(r), nil
}

// NewChar creates a character value bound to e.
func (e *Engine) NewChar(r rune) Character {
	var v Value
	e.rt.SetChar(e.handle, &v.cell, r)
	v.finishInit(e)
	return Character{v}
}

// IsValid reports whether the value is a character.
func (c Character) IsValid() bool { return c.IsCharacter() }

// Char extracts the codepoint as a narrow host character. Codepoints
// outside the ASCII range do not fit and fail with ErrNonASCII. It
// panics if the value is not a character.
func (c Character) Char() (byte, error) {
	r := c.Codepoint()
	if r < 0 || r > 0x7f {
		return 0, fmt.Errorf("%w: %q", ErrNonASCII, r)
	}
	return byte(r), nil
}

// Codepoint extracts the codepoint. It always succeeds for a character
// value and panics otherwise; callers are expected to have checked
// IsValid.
func (c Character) Codepoint() rune {
	if !c.IsCharacter() {
		panic("ren: Codepoint called on a value that is not a character")
	}
	return c.engine.rt.Char(c.engine.handle, &c.cell)
}
