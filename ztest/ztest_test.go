package ztest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldSkip(t *testing.T) {
	assert.Equal(t, "script test on in-process run", (&ZTest{Script: "x"}).ShouldSkip(""))
	assert.Equal(t, "reason", (&ZTest{Skip: "reason"}).ShouldSkip(""))
	assert.Equal(t, `tag "x" does not match ZTEST_TAG=""`, (&ZTest{Tag: "x"}).ShouldSkip(""))
}

func TestRunScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows because RunScript uses cmd.exe instead of bash")
	}
	t.Run("outputs", func(t *testing.T) {
		testDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(testDir, "testdirfile"), []byte("testdirfile\n"), 0644))
		strptr := func(s string) *string { return &s }
		err := (&ZTest{
			Script: `
				echo stdout
				echo stderr >&2
				touch empty
				echo notempty > notempty
				echo regexp > regexp
				echo testdirfile > testdirfile
				echo testdirfile > testdirfile2
				`,
			Outputs: []File{
				{Name: "stdout", Data: strptr("stdout\n")},
				{Name: "stderr", Data: strptr("stderr\n")},
				{Name: "empty", Data: strptr("")},
				{Name: "notempty", Data: strptr("notempty\n")},
				{Name: "regexp", Re: "^re"},
				{Name: "testdirfile"},
				{Name: "testdirfile2", Source: "testdirfile"},
			},
		}).RunScript("", testDir, t.TempDir())
		assert.NoError(t, err)
	})
	t.Run("error", func(t *testing.T) {
		err := (&ZTest{
			Script:  "echo 1; echo 2 >&2; exit 3",
			Outputs: []File{},
		}).RunScript("", "", "")
		assert.EqualError(t, err, "script failed: exit status 3\n=== stdout ===\n1\n=== stderr ===\n2\n")
	})
}

const userSchema = `
modules:
  - name: default
    types:
      - name: User
        pointers:
          - {name: name, target: str}
`

func TestRunInternal(t *testing.T) {
	ctx := context.Background()
	z := &ZTest{Schema: userSchema, Query: "SELECT User.name", Contains: []string{"name: s1.name"}, Excludes: []string{"s2"}}
	assert.NoError(t, z.RunInternal(ctx))

	z = &ZTest{Schema: userSchema, Query: "SELECT User.nam", ErrorRE: "does not resolve", ErrorKind: "reference error"}
	assert.NoError(t, z.RunInternal(ctx))

	z = &ZTest{Schema: userSchema, Query: "SELECT User.nam", ErrorKind: "syntax error"}
	assert.ErrorContains(t, z.RunInternal(ctx), "expected syntax error, got reference error")

	z = &ZTest{Schema: userSchema, Query: "SELECT User.name", Dump: "nope\n"}
	err := z.RunInternal(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--- expected")
	assert.Contains(t, err.Error(), "-nope")
}

func TestFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.yaml")
	src := "query: SELECT User\nmodules:\n  \"\": foo\ncontains:\n  - a\n  - b\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	z, err := FromYAMLFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SELECT User", z.Query)
	assert.Equal(t, "foo", z.Modules[""])
	assert.Equal(t, []string{"a", "b"}, z.Contains)
}
