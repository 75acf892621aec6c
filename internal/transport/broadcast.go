package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// DiscoveryReply is one valid answer to a discovery probe.
type DiscoveryReply struct {
	IP string
	// Port is the advertised task port, 0 when the worker did not advertise one.
	Port int
}

// Prober sends a discovery probe and collects replies for a fixed window.
type Prober struct {
	// Address is the probe destination, normally the broadcast address.
	Address string
	// Window is how long replies are collected after the probe is sent.
	Window time.Duration
	// TTL is applied to the probe socket when positive.
	TTL int
}

// Probe runs one probe-and-collect cycle. Socket setup and send errors are
// returned without replies. Replies arriving after the window are dropped.
func (p *Prober) Probe(ctx context.Context) ([]DiscoveryReply, error) {
	raddr, err := net.ResolveUDPAddr("udp4", p.Address)
	if err != nil {
		return nil, fmt.Errorf("resolve probe address %s: %w", p.Address, err)
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("create probe socket: %w", err)
	}
	defer pc.Close()

	if p.TTL > 0 {
		if err := ipv4.NewPacketConn(pc).SetTTL(p.TTL); err != nil {
			return nil, fmt.Errorf("set probe ttl: %w", err)
		}
	}

	if _, err := pc.WriteTo([]byte(DiscoveryMessage), raddr); err != nil {
		return nil, fmt.Errorf("send probe to %s: %w", p.Address, err)
	}

	deadline := time.Now().Add(p.Window)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := pc.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set probe deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = pc.SetReadDeadline(time.Now())
	})
	defer stop()

	var replies []DiscoveryReply
	buf := make([]byte, MaxMessageSize)
	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			if IsTimeout(err) || errors.Is(err, net.ErrClosed) {
				break
			}
			continue
		}

		port, ok := ParseDiscoveryResponse(buf[:n])
		if !ok {
			continue
		}
		udpAddr, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		replies = append(replies, DiscoveryReply{IP: udpAddr.IP.String(), Port: port})
	}

	// A cancelled pass must not be mistaken for a silent network.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return replies, nil
}
