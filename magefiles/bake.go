//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Bake mg.Namespace

// Bakes every model listed in meshbake.yaml.
func (Bake) All() error {
	mg.Deps(Build.CLI)
	return bakeWithConfig("meshbake.yaml")
}

// Rebakes the configured models whenever their sources change.
func (Bake) Watch() error {
	mg.Deps(Build.CLI)
	_, err := executeCmd("bin/meshbake", withArgs("watch", "-config", "meshbake.yaml"), withStream())
	return err
}

func bakeWithConfig(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config %s not found: %w", path, err)
	}
	_, err := executeCmd("bin/meshbake", withArgs("bake", "-config", path), withStream())
	return err
}
