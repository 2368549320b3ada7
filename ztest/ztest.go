// Package ztest runs compiler tests described in YAML files.
//
// A ztest names a schema, a query, and what compiling the query against
// the schema must produce: an IR dump, lines the dump must contain, or an
// error.  For example:
//
//	schema: |
//	  modules:
//	    - name: default
//	      types:
//	        - name: User
//	          pointers:
//	            - {name: name, target: str}
//	query: SELECT User.name
//	contains:
//	  - "name: s1.name"
//
// A ztest may instead give a bash script along with the files it must
// leave behind.  Script tests run only when the ZTEST_PATH environment
// variable names a directory holding the edgeql command.
package ztest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/brimdata/edgeql/compiler"
	"github.com/brimdata/edgeql/compiler/ir"
	zqe "github.com/brimdata/edgeql/errors"
	"github.com/brimdata/edgeql/schema"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

type ZTest struct {
	Skip string `yaml:"skip,omitempty"`
	Tag  string `yaml:"tag,omitempty"`

	// Schema is a schema definition in the format read by schema.Load.
	Schema  string               `yaml:"schema,omitempty"`
	Modules schema.ModuleAliases `yaml:"modules,omitempty"`
	Query   string               `yaml:"query,omitempty"`

	// Dump is the exact expected output of ir.Dump.
	Dump     string   `yaml:"dump,omitempty"`
	Contains []string `yaml:"contains,omitempty"`
	Excludes []string `yaml:"excludes,omitempty"`
	ErrorRE  string   `yaml:"errorRE,omitempty"`
	// ErrorKind is the expected zqe.Kind of the error, e.g. "syntax error".
	ErrorKind string `yaml:"errorKind,omitempty"`

	Script  string `yaml:"script,omitempty"`
	Inputs  []File `yaml:"inputs,omitempty"`
	Outputs []File `yaml:"outputs,omitempty"`
}

// File is an input or output of a script test.  An output with neither
// Data nor Re is compared with the file called Source, or Name when Source
// is empty, in the test directory.
type File struct {
	Name   string  `yaml:"name"`
	Data   *string `yaml:"data,omitempty"`
	Re     string  `yaml:"re,omitempty"`
	Source string  `yaml:"source,omitempty"`
}

// Run runs every ztest in dirname as a subtest of t.
func Run(t *testing.T, dirname string) {
	t.Helper()
	entries, err := os.ReadDir(dirname)
	if err != nil {
		t.Fatal(err)
	}
	shellPath := os.Getenv("ZTEST_PATH")
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".yaml" {
			continue
		}
		testname := strings.TrimSuffix(name, ".yaml")
		t.Run(testname, func(t *testing.T) {
			t.Parallel()
			z, err := FromYAMLFile(filepath.Join(dirname, name))
			if err != nil {
				t.Fatalf("%s: %s", name, err)
			}
			if reason := z.ShouldSkip(shellPath); reason != "" {
				t.Skip("skipping: " + reason)
			}
			if z.Script != "" {
				err = z.RunScript(shellPath, dirname, t.TempDir())
			} else {
				err = z.RunInternal(context.Background())
			}
			if err != nil {
				t.Fatalf("%s: %s", name, err)
			}
		})
	}
}

func FromYAMLFile(path string) (*ZTest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var z ZTest
	if err := yaml.Unmarshal(b, &z); err != nil {
		return nil, err
	}
	return &z, nil
}

// ShouldSkip returns the reason z should not run or the empty string.
func (z *ZTest) ShouldSkip(path string) string {
	switch tag := os.Getenv("ZTEST_TAG"); {
	case z.Skip != "":
		return z.Skip
	case z.Tag != "" && z.Tag != tag:
		return fmt.Sprintf("tag %q does not match ZTEST_TAG=%q", z.Tag, tag)
	case z.Script != "" && path == "":
		return "script test on in-process run"
	}
	return ""
}

// RunInternal compiles the query in process and checks the outcome.
func (z *ZTest) RunInternal(ctx context.Context) error {
	snap, err := schema.Load(strings.NewReader(z.Schema))
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	g, err := compiler.CompileToIR(ctx, z.Query, snap, compiler.WithModuleAliases(z.Modules))
	if err != nil {
		return z.checkError(err)
	}
	if z.ErrorRE != "" || z.ErrorKind != "" {
		return errors.New("compile succeeded but an error was expected")
	}
	dump := ir.Dump(g)
	if z.Dump != "" && z.Dump != dump {
		return fmt.Errorf("dump mismatch:\n%s", diff(z.Dump, dump))
	}
	for _, s := range z.Contains {
		if !strings.Contains(dump, s) {
			return fmt.Errorf("dump does not contain %q:\n%s", s, dump)
		}
	}
	for _, s := range z.Excludes {
		if strings.Contains(dump, s) {
			return fmt.Errorf("dump contains %q:\n%s", s, dump)
		}
	}
	return nil
}

func (z *ZTest) checkError(err error) error {
	if z.ErrorRE == "" && z.ErrorKind == "" {
		return fmt.Errorf("unexpected error: %w", err)
	}
	if z.ErrorKind != "" {
		if kind := zqe.KindOf(err).String(); kind != z.ErrorKind {
			return fmt.Errorf("expected %s, got %s: %w", z.ErrorKind, kind, err)
		}
	}
	if z.ErrorRE != "" {
		re, rerr := regexp.Compile(z.ErrorRE)
		if rerr != nil {
			return fmt.Errorf("errorRE: %w", rerr)
		}
		if !re.MatchString(err.Error()) {
			return fmt.Errorf("error does not match %q:\n%s", z.ErrorRE, err)
		}
	}
	return nil
}

// RunScript runs z.Script in tempDir with shellPath on the PATH and
// compares the outputs with testDir as the source of expected files.
func (z *ZTest) RunScript(shellPath, testDir, tempDir string) error {
	dir := scriptDir(tempDir)
	for _, f := range z.Inputs {
		data, err := f.load(testDir)
		if err != nil {
			return err
		}
		if err := dir.write(f.Name, []byte(data)); err != nil {
			return err
		}
	}
	stdout, stderr, err := runShell(dir, shellPath, z.Script)
	if err != nil {
		return fmt.Errorf("script failed: %s\n=== stdout ===\n%s=== stderr ===\n%s", err, stdout, stderr)
	}
	for _, f := range z.Outputs {
		var actual string
		switch f.Name {
		case "stdout":
			actual = stdout
		case "stderr":
			actual = stderr
		default:
			b, err := dir.read(f.Name)
			if err != nil {
				return err
			}
			actual = string(b)
		}
		if f.Re != "" {
			re, err := regexp.Compile(f.Re)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			if !re.MatchString(actual) {
				return fmt.Errorf("%s does not match %q:\n%s", f.Name, f.Re, actual)
			}
			continue
		}
		expected, err := f.load(testDir)
		if err != nil {
			return err
		}
		if expected != actual {
			return fmt.Errorf("%s mismatch:\n%s", f.Name, diff(expected, actual))
		}
	}
	return nil
}

func (f *File) load(testDir string) (string, error) {
	if f.Data != nil {
		return *f.Data, nil
	}
	source := f.Source
	if source == "" {
		source = f.Name
	}
	b, err := os.ReadFile(filepath.Join(testDir, source))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func diff(expected, actual string) string {
	s, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return err.Error()
	}
	return s
}
