package nscache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFamily(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name        string
		err         error
		is          error
		unavailable bool
	}{
		{"connection", &ConnectionError{Attempts: 5, Err: cause}, ErrConnection, true},
		{"operation", &OperationError{Op: "get", Key: "k", Err: cause}, ErrOperation, true},
		{"serialization", &SerializationError{Op: "decode", Key: "k", Err: cause}, ErrSerialization, false},
		{"pattern", &PatternError{Pattern: "*", Errs: []error{cause}}, ErrCache, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.is)
			assert.ErrorIs(t, tt.err, ErrCache)
			assert.ErrorIs(t, tt.err, cause)
			assert.Equal(t, tt.unavailable, IsUnavailable(tt.err))
		})
	}
}

func TestErrorFamilyDoesNotCrossMatch(t *testing.T) {
	err := &SerializationError{Op: "decode", Key: "k", Err: errors.New("x")}
	assert.NotErrorIs(t, err, ErrConnection)
	assert.NotErrorIs(t, err, ErrOperation)
	assert.False(t, IsUnavailable(errors.New("plain")))
}

func TestConnectionErrorMessage(t *testing.T) {
	err := &ConnectionError{Attempts: 5, Err: errors.New("refused")}
	assert.Equal(t, "nscache: store unreachable after 5 attempt(s): refused", err.Error())

	err = &ConnectionError{Err: context.Canceled}
	assert.Equal(t, "nscache: store unreachable: context canceled", err.Error())
}

func TestOperationErrorMessage(t *testing.T) {
	assert.Equal(t, `nscache: del "k": x`, (&OperationError{Op: "del", Key: "k", Err: errors.New("x")}).Error())
	assert.Equal(t, "nscache: ping: x", (&OperationError{Op: "ping", Err: errors.New("x")}).Error())
}

func TestPatternErrorMessage(t *testing.T) {
	pe := &PatternError{
		Pattern: "device:*",
		Matched: 4,
		Deleted: 1,
		Errs: []error{
			&OperationError{Op: "del", Key: "device:2", Err: errors.New("a")},
			errors.New("b"),
			errors.New("c"),
		},
	}
	assert.Equal(t,
		`nscache: remove by pattern "device:*": 1 of 4 matched key(s) deleted, 3 error(s): nscache: del "device:2": a (and 2 more)`,
		pe.Error())
	assert.ErrorIs(t, pe, ErrOperation)
}
