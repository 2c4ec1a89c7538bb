//go:build !windows

package relocate

import "syscall"

var errCrossDevice error = syscall.EXDEV
