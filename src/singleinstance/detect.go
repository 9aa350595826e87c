package singleinstance

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"
)

const detectTimeout = 300 * time.Millisecond

// DetectResidentPort reports the port of a running capture that answers PING.
func DetectResidentPort(ctx context.Context) (int, bool) {
	port, _, err := findResident(ctx, detectTimeout)
	return port, err == nil && port != 0
}

// findResident walks the port range and returns the first endpoint answering
// PING. A zero port with a nil error means nothing is listening. The context
// deadline, when set, replaces fallback as the per-port timeout.
func findResident(ctx context.Context, fallback time.Duration) (int, string, error) {
	timeout := fallback
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			timeout = d
		}
	}

	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if err := ctx.Err(); err != nil {
			return 0, "", err
		}
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if ping(addr, timeout) {
			return port, addr, nil
		}
	}
	return 0, "", nil
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write([]byte(pingRequest)); err != nil {
		return false
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && line == pongResponse
}
