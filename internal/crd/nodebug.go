//go:build !debug
// +build !debug

package crd

// Release builds count contract violations and carry on.
const assertions = false
