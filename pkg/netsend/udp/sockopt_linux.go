//go:build linux

package udp

import (
	"net"

	"golang.org/x/sys/unix"
)

// audioSocketPriority is the SO_PRIORITY band used for interactive audio.
const audioSocketPriority = 6

// setTrafficClass writes the DSCP code point into the IP TOS byte (IPv4) or
// traffic class (IPv6) and raises the socket priority. Failing to raise the
// priority is ignored: containers commonly deny it.
func setTrafficClass(conn *net.UDPConn, ipv4 bool, dscp int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	tos := dscp << 2

	var serr error
	err = raw.Control(func(fd uintptr) {
		if ipv4 {
			serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, tos)
		} else {
			serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)
		}
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_PRIORITY, audioSocketPriority)
	})
	if err != nil {
		return err
	}
	return serr
}
