//go:build mage

package main

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// Report builds the CLI and runs one curation cycle for today.
func Report() error {
	mg.Deps(Build)

	cmd := exec.Command(filepath.Join(binDir, binName), "run")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
