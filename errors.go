package mp4atom

import "github.com/zeebo/errs"

var (
	// Error is the default error class for the package. Programming errors
	// that are reported through panics carry this class as well.
	Error = errs.Class("mp4atom")

	// StructureError marks a file whose layout cannot be trusted: a
	// descriptor or atom that overruns its container, a truncated read,
	// a size field that does not fit. Reading stops when it is raised.
	StructureError = errs.Class("mp4atom structure")

	// ValidationError is raised by Validate and by the strict count policy.
	ValidationError = errs.Class("mp4atom validation")
)
