// Package utils holds small helpers shared by the mc and mcapi binaries.
package utils

// Build metadata, set with -ldflags "-X" at release time.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
