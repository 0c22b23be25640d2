//go:build debug

package grouper

const debugContracts = true
