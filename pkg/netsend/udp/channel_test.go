package udp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"
)

func listen(t *testing.T) (*net.UDPConn, Endpoint) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	port := strconv.Itoa(conn.LocalAddr().(*net.UDPAddr).Port)
	ep, err := Resolve(context.Background(), "127.0.0.1", port)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return conn, ep
}

func TestChannel_Send(t *testing.T) {
	recv, ep := listen(t)
	ch, err := Open(ep, WithTrafficClass(46), WithWriteTimeout(time.Second), WithSendBuffer(64*1024))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	if ch.Endpoint() != ep {
		t.Errorf("Endpoint = %v, want %v", ch.Endpoint(), ep)
	}
	if ch.LocalAddr() == nil {
		t.Error("LocalAddr is nil")
	}

	payload := []byte("hello, datagram")
	n, err := ch.Send(payload)
	if err != nil || n != len(payload) {
		t.Fatalf("Send = (%d, %v), want (%d, nil)", n, err, len(payload))
	}

	buf := make([]byte, 128)
	_ = recv.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, _, err := recv.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf[:got], payload) {
		t.Errorf("received %q, want %q", buf[:got], payload)
	}
}

func TestChannel_Close(t *testing.T) {
	_, ep := listen(t)
	ch, err := Open(ep)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for range 2 {
		if err := ch.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	if _, err := ch.Send([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestOpen_InvalidTrafficClass(t *testing.T) {
	_, ep := listen(t)
	for _, dscp := range []int{-1, 64} {
		if ch, err := Open(ep, WithTrafficClass(dscp)); err == nil {
			ch.Close()
			t.Errorf("Open with dscp %d succeeded", dscp)
		}
	}
}
