package zqe_test

import (
	"errors"
	"fmt"
	"testing"

	zqe "github.com/brimdata/edgeql/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE(t *testing.T) {
	err := zqe.E(zqe.Reference, zqe.Span{Pos: 3, End: 5}, zqe.Hint("did you mean name?"), "no pointer %q", "nam")
	assert.Equal(t, `reference error: no pointer "nam"`, err.Error())
	assert.Equal(t, "did you mean name?", zqe.HintOf(err))
	assert.True(t, zqe.IsReference(err))
	assert.True(t, zqe.IsUserError(err))

	var e *zqe.Error
	require.True(t, errors.As(err, &e))
	assert.True(t, e.HasSpan())
	assert.Equal(t, `no pointer "nam"`, e.Message())
}

func TestWrapped(t *testing.T) {
	inner := zqe.E(zqe.Syntax, zqe.Hint("use parentheses"), "bad INSERT")
	err := fmt.Errorf("statement 2: %w", inner)
	assert.True(t, zqe.IsSyntax(err))
	assert.Equal(t, "use parentheses", zqe.HintOf(err))

	outer := zqe.E(zqe.Internal, inner)
	assert.True(t, zqe.IsInternal(outer))
	assert.False(t, zqe.IsUserError(outer))
	assert.Equal(t, "use parentheses", zqe.HintOf(outer))
}

func TestNoSpan(t *testing.T) {
	err := zqe.E(zqe.Tree, "mix")
	var e *zqe.Error
	require.True(t, errors.As(err, &e))
	assert.False(t, e.HasSpan())
	assert.Equal(t, zqe.Other, zqe.KindOf(errors.New("plain")))
	assert.Equal(t, "", zqe.HintOf(errors.New("plain")))
}

func TestBadArg(t *testing.T) {
	err := zqe.E(zqe.Syntax, 42)
	assert.Contains(t, err.Error(), "unknown type int")
}
