//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package core

import "syscall"

// controlFunc leaves socket options at their defaults on this platform
func controlFunc(bool) func(network, address string, c syscall.RawConn) error {
	return nil
}
