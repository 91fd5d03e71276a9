package rethinkdb

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rethinkdb/rethinkdb-go/internal/wire"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

func runtimeEnvelope(kind proto.ErrorType, msg string) *wire.Response {
	return &wire.Response{
		Type:      proto.ResponseRuntimeError,
		Results:   []json.RawMessage{json.RawMessage(`"` + msg + `"`)},
		ErrorType: kind,
	}
}

func TestResponseErrorMapping(t *testing.T) {
	cases := []struct {
		env  *wire.Response
		want error
	}{
		{runtimeEnvelope(proto.ErrorInternal, "x"), &ReqlInternalError{}},
		{runtimeEnvelope(proto.ErrorResourceLimit, "x"), &ReqlResourceLimitError{}},
		{runtimeEnvelope(proto.ErrorQueryLogic, "x"), &ReqlQueryLogicError{}},
		{runtimeEnvelope(proto.ErrorNonExistence, "x"), &ReqlNonExistenceError{}},
		{runtimeEnvelope(proto.ErrorOpFailed, "x"), &ReqlOpFailedError{}},
		{runtimeEnvelope(proto.ErrorOpIndeterminate, "x"), &ReqlOpIndeterminateError{}},
		{runtimeEnvelope(proto.ErrorUser, "x"), &ReqlUserError{}},
		{runtimeEnvelope(proto.ErrorPermission, "x"), &ReqlPermissionError{}},
		{&wire.Response{Type: proto.ResponseCompileError, Results: []json.RawMessage{json.RawMessage(`"x"`)}}, &ReqlServerCompileError{}},
		{&wire.Response{Type: proto.ResponseClientError, Results: []json.RawMessage{json.RawMessage(`"x"`)}}, &ReqlDriverError{}},
	}
	for _, tc := range cases {
		err := responseError(tc.env, nil)
		assert.ErrorIs(t, err, tc.want, "envelope type %d/%d", tc.env.Type, tc.env.ErrorType)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	err := responseError(runtimeEnvelope(proto.ErrorNonExistence, "missing"), nil)

	assert.ErrorIs(t, err, &ReqlNonExistenceError{})
	assert.ErrorIs(t, err, &ReqlQueryLogicError{})
	assert.ErrorIs(t, err, &ReqlRuntimeError{})
	assert.ErrorIs(t, err, &ReqlError{})
	assert.NotErrorIs(t, err, &ReqlDriverError{})
	assert.NotErrorIs(t, err, &ReqlOpFailedError{})
}

func TestDriverErrorTaxonomy(t *testing.T) {
	auth := newAuthError("bad credentials")
	assert.ErrorIs(t, auth, &ReqlAuthError{})
	assert.ErrorIs(t, auth, &ReqlDriverError{})
	assert.ErrorIs(t, auth, &ReqlError{})
	assert.NotErrorIs(t, auth, &ReqlRuntimeError{})

	timeout := newTimeoutError("localhost", 28015)
	assert.ErrorIs(t, timeout, &ReqlTimeoutError{})
	assert.ErrorIs(t, timeout, &ReqlDriverError{})
	assert.Contains(t, timeout.Error(), "localhost:28015")
}

func TestUnknownRuntimeErrorKindFallsBack(t *testing.T) {
	err := responseError(runtimeEnvelope(proto.ErrorType(42), "odd"), nil)
	assert.ErrorIs(t, err, &ReqlRuntimeError{})
	assert.NotErrorIs(t, err, &ReqlUserError{})
}

func TestCursorEmptyIdentity(t *testing.T) {
	assert.True(t, errors.Is(ErrCursorEmpty, &ReqlCursorEmpty{}))
	assert.Equal(t, "Cursor is empty.", ErrCursorEmpty.Error())
}

func TestErrorMessageWithoutTerm(t *testing.T) {
	err := responseError(runtimeEnvelope(proto.ErrorQueryLogic, "plain failure."), nil)
	assert.Equal(t, "plain failure.", err.Error())
}

func TestErrorMessageWithTermTrimsPeriod(t *testing.T) {
	term := Expr(1).Add(2)
	env := runtimeEnvelope(proto.ErrorQueryLogic, "boom.")
	env.Backtrace = []wire.Frame{{Pos: 1}}

	msg := responseError(env, &term).Error()
	require.Contains(t, msg, "boom in:\n")
	assert.NotContains(t, msg, "boom.")
}
