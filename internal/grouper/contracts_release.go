//go:build !debug

package grouper

// debugContracts makes contract violations panic. Build with -tags debug.
const debugContracts = false
