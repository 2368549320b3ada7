package compiler

import (
	"context"
	"strings"
	"testing"

	"github.com/brimdata/edgeql/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	snap, err := schema.Load(strings.NewReader(`
modules:
  - name: default
    types:
      - name: User
        pointers:
          - {name: name, target: str}
`))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	ctx := context.Background()
	_, err = CompileToIR(ctx, "SELECT User.name", snap, WithMetrics(m))
	require.NoError(t, err)
	_, err = CompileToIR(ctx, "SELECT User.nope", snap, WithMetrics(m))
	require.Error(t, err)
	_, err = CompileToIR(ctx, "SELECT (", snap, WithMetrics(m))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.compiles.WithLabelValues("SelectQuery", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compiles.WithLabelValues("SelectQuery", "reference_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compiles.WithLabelValues("unknown", "syntax_error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "edgeql_compile_seconds")
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "canceled", resultLabel(context.Canceled))
}
