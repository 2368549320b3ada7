package ztest

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
)

// passEnv lists the variables a script inherits from the test process.
var passEnv = []string{"ZTEST_TAG", "TMPDIR", "LANG"}

// scriptDir is the working directory of one script test.
type scriptDir string

func (d scriptDir) join(name string) string {
	return filepath.Join(string(d), filepath.FromSlash(name))
}

// write creates name under d along with any parent directories.
func (d scriptDir) write(name string, data []byte) error {
	path := d.join(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (d scriptDir) read(name string) ([]byte, error) {
	return os.ReadFile(d.join(name))
}

// runShell runs script under bash in d with bindir at the end of PATH.
// Any failing command fails the script.
func runShell(d scriptDir, bindir, script string) (string, string, error) {
	cmd := exec.Command("bash", "-e", "-o", "pipefail", "-c", script)
	cmd.Dir = string(d)
	cmd.Env = []string{"HOME=" + string(d), "PATH=/bin:/usr/bin:" + bindir}
	for _, name := range passEnv {
		if v, ok := os.LookupEnv(name); ok {
			cmd.Env = append(cmd.Env, name+"="+v)
		}
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
