//go:build debug
// +build debug

package crd

// Contract violations panic when built with -tags debug.
const assertions = true
