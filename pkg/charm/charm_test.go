package charm

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCommand struct {
	name   string
	parent Command
	n      int
	ran    *[]string
}

func (c *testCommand) Run(args []string) error {
	if c.name == "root" && len(args) == 0 {
		return NeedHelp
	}
	*c.ran = append(*c.ran, c.name)
	*c.ran = append(*c.ran, args...)
	return nil
}

func testSpecs(ran *[]string) *Spec {
	newCmd := func(name string) Constructor {
		return func(parent Command, f *flag.FlagSet) (Command, error) {
			c := &testCommand{name: name, parent: parent, ran: ran}
			f.IntVar(&c.n, "n", 0, "a number")
			return c, nil
		}
	}
	root := &Spec{Name: "root", Usage: "root [command]", Short: "test root", New: newCmd("root")}
	root.Add(&Spec{Name: "child", Usage: "child [args]", Short: "test child", New: newCmd("child")})
	root.Add(Help)
	return root
}

func TestExecRoot(t *testing.T) {
	var ran []string
	root := testSpecs(&ran)
	require.NoError(t, root.ExecRoot([]string{"-n", "1", "child", "-n", "2", "a", "b"}))
	assert.Equal(t, []string{"child", "a", "b"}, ran)

	p, rest, err := parse(root, []string{"-n", "1", "child", "-n", "2", "x"})
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, 1, p[0].command.(*testCommand).n)
	assert.Equal(t, 2, p[1].command.(*testCommand).n)
	assert.Same(t, p[0].command, p[1].command.(*testCommand).parent)
	assert.Equal(t, []string{"x"}, rest)
	assert.Equal(t, "root child", p.pathname())
}

func TestHelp(t *testing.T) {
	var ran []string
	root := testSpecs(&ran)
	p, err := parseHelp(root, []string{"-n", "1", "child", "-h"})
	require.NoError(t, err)
	var b bytes.Buffer
	(&HelpCommand{}).help(&b, p)
	out := b.String()
	assert.Contains(t, out, "child - test child")
	assert.Contains(t, out, "-n a number")
	assert.Contains(t, out, "[root flags]")
	assert.NotContains(t, out, "test root")

	p, err = parseHelp(root, []string{"-n=1", "child", "-n", "2", "-h"})
	require.NoError(t, err)
	assert.Equal(t, "root child", p.pathname())
	p, err = parseHelp(root, []string{"-bogus", "child"})
	require.NoError(t, err)
	assert.Equal(t, "root", p.pathname())

	_, err = (&HelpCommand{}).search([]string{"nope"})
	assert.EqualError(t, err, "no such command: nope")
}

func TestFlagMap(t *testing.T) {
	assert.Equal(t, map[string]bool{"a": true, "b": true}, flagMap(" a, b"))
	assert.Empty(t, flagMap(""))
}
