//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the propbag project using Mage.
//
// Usage:
//
//	mage build             Compile the propbag binary to bin/
//	mage install           Install propbag to GOPATH/bin
//	mage test:all          Run all tests (unit + integration)
//	mage test:unit         Run only unit tests
//	mage test:integration  Build, then run the binary tests in tests/
//	mage test:postgres     Run the store tests against PROPBAG_TEST_POSTGRES_DSN
//	mage lint              Run golangci-lint
//	mage clean             Remove build artifacts
package main

const (
	binGo      = "go"
	binaryName = "propbag"
	binaryDir  = "bin"
	cmdDir     = "./cmd/propbag"
	modulePath = "github.com/mesh-intelligence/propbag"
)
