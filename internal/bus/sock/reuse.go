package sock

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setReuseAddr is plugged into net.ListenConfig.Control so a restarted
// process can rebind a port still draining in TIME_WAIT from the previous
// instance, matching the bind-retry behavior expected of long-lived
// per-route listeners.
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
