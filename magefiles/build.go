//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the meshbake binary into bin/.
func (Build) CLI() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/meshbake", "./cmd/meshbake"), withStream())
	return err
}

// Runs go vet on every package.
func Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}

// Runs the test suite with the race detector.
func Test() error {
	mg.Deps(Vet)
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Regenerates checked-in test fixtures.
func Generate() error {
	_, err := executeCmd("go", withArgs("run", "generate.go"), withDir("pkg/baked/testdata"), withStream())
	return err
}
