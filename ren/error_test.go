package ren_test

import (
	"context"
	"testing"

	"github.com/renlang/rengo/ren"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorValue(t *testing.T) {
	_, eng := newTestEngine(t)

	ev, err := eng.NewError("bad input")
	require.NoError(t, err)
	require.True(t, ev.IsValid())
	assert.True(t, ev.IsError())

	s, err := ev.Form()
	require.NoError(t, err)
	assert.Equal(t, "bad input", s)
}

func TestEvaluationErrorWrap(t *testing.T) {
	_, eng := newTestEngine(t)

	ev, err := eng.NewError("bad input")
	require.NoError(t, err)

	ee := ren.NewEvaluationError(ev)
	assert.Contains(t, ee.Error(), "bad input")
	require.True(t, ee.Value().IsError())

	s, err := ee.Value().Form()
	require.NoError(t, err)
	assert.Equal(t, "bad input", s)
}

func TestErrorApply(t *testing.T) {
	rt, eng := newTestEngine(t)

	ev, err := eng.NewError("boom")
	require.NoError(t, err)

	applied := ev.Apply()
	var ee *ren.EvaluationError
	require.ErrorAs(t, applied, &ee)
	assert.Contains(t, ee.Error(), "boom")

	// the raise went through the runtime, not just the wrapper
	assert.Equal(t, "boom", rt.LastRaised(eng.Handle()))
}

func TestErrorApplyAbsent(t *testing.T) {
	var ev ren.Error
	err := ev.Apply()
	var noval *ren.HasNoValue
	require.ErrorAs(t, err, &noval)
}

func TestDoRaised(t *testing.T) {
	_, eng := newTestEngine(t)

	_, err := eng.Do(context.Background(), "error bad input")
	var ee *ren.EvaluationError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Error(), "bad input")
	assert.True(t, ee.Value().IsError())
}

func TestDoRaisedUnknownWord(t *testing.T) {
	_, eng := newTestEngine(t)

	_, err := eng.Do(context.Background(), "get nope")
	var ee *ren.EvaluationError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Error(), "nope has no value")
}

func TestDoExit(t *testing.T) {
	_, eng := newTestEngine(t)

	_, err := eng.Do(context.Background(), "quit 2")
	var exit *ren.ExitCommand
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 2, exit.Code())
	assert.Contains(t, exit.Error(), "2")

	// a bare quit exits with code zero
	_, err = eng.Do(context.Background(), "quit")
	require.ErrorAs(t, err, &exit)
	assert.Zero(t, exit.Code())
}

func TestHasNoValueMessage(t *testing.T) {
	err := error(&ren.HasNoValue{})
	assert.Equal(t, "ren: no value", err.Error())

	cancelled := error(&ren.EvaluationCancelled{})
	assert.Equal(t, "ren: evaluation cancelled", cancelled.Error())
}
