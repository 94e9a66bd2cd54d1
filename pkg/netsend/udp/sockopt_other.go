//go:build !linux

package udp

import "net"

func setTrafficClass(_ *net.UDPConn, _ bool, _ int) error {
	return nil
}
