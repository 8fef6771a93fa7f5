//go:build mage

// Package main provides build targets for the sitenotes project using Mage.
//
// Usage:
//
//	mage build            Compile sitenotes binary to bin/
//	mage test             Run all tests (unit + integration)
//	mage testUnit         Run only unit tests (exclude integration)
//	mage testIntegration  Run only integration tests (builds first)
//	mage lint             Run golangci-lint
//	mage clean            Remove build artifacts
//	mage install          Install sitenotes to GOPATH/bin
//	mage stats            Print per-package Go lines and test counts
package main

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "sitenotes"
	binaryDir  = "bin"
	cmdDir     = "./cmd/sitenotes"

	versionVar = "github.com/mesh-intelligence/sitenotes/internal/cli.Version"
)
