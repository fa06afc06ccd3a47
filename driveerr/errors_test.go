package driveerr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := New(KindFileTooSmall, "sample", "/tmp/x", nil)

	assert.True(t, errors.Is(err, ErrFileTooSmall))
	assert.False(t, errors.Is(err, ErrIOFailure))

	wrapped := fmt.Errorf("run aborted: %w", err)
	assert.True(t, errors.Is(wrapped, ErrFileTooSmall))
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	err := New(KindIOFailure, "read", "/tmp/x", io.ErrUnexpectedEOF)

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, "read: IO_FAILURE (/tmp/x): unexpected EOF", err.Error())
}

func TestKindOfAndIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  Kind
		fatal bool
	}{
		{name: "nil", err: nil, kind: "", fatal: false},
		{name: "plain error", err: errors.New("boom"), kind: "", fatal: true},
		{name: "io failure", err: Newf(KindIOFailure, "write", "", "short write %d/%d", 1, 2), kind: KindIOFailure, fatal: true},
		{name: "digest mismatch", err: New(KindDigestMismatch, "verify", "", nil), kind: KindDigestMismatch, fatal: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}
