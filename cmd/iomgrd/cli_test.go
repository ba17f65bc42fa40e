package main_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"
)

// TestMain builds the iomgrd binary once and puts it on PATH so the
// scripted tests below can "exec iomgrd ..." the way a shell user would,
// grounded in the teacher's own direct dependency on rsc.io/script for
// CLI-surface integration tests (SPEC_FULL.md §A.4).
func TestMain(m *testing.M) {
	bin, cleanup, err := buildIomgrd()
	if err != nil {
		os.Stderr.WriteString("building iomgrd: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer cleanup()
	os.Setenv("PATH", filepath.Dir(bin)+string(os.PathListSeparator)+os.Getenv("PATH"))
	os.Exit(m.Run())
}

func buildIomgrd() (string, func(), error) {
	dir, err := os.MkdirTemp("", "iomgrd-bin-")
	if err != nil {
		return "", nil, err
	}
	bin := filepath.Join(dir, "iomgrd")
	cmd := exec.Command("go", "build", "-o", bin, ".")
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("%w: %s", err, out)
	}
	return bin, func() { os.RemoveAll(dir) }, nil
}

// TestCLIScripts runs every testdata/script/*.txt file through rsc.io/script.
func TestCLIScripts(t *testing.T) {
	scripttest.Test(t,
		context.Background(),
		func() *script.Engine {
			return &script.Engine{
				Cmds:  script.DefaultCmds(),
				Conds: script.DefaultConds(),
			}
		},
		os.Environ(),
		"testdata/script/*.txt")
}
