package compiler_test

import (
	"testing"

	"github.com/brimdata/edgeql/ztest"
)

func TestZTest(t *testing.T) {
	ztest.Run(t, "ztests")
}
