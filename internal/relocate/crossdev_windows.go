//go:build windows

package relocate

import "syscall"

// ERROR_NOT_SAME_DEVICE
var errCrossDevice error = syscall.Errno(17)
