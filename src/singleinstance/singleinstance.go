// Package singleinstance lets one capture run own a loopback TCP endpoint so
// later invocations can find it, ask for its status or tell it to stop.
package singleinstance

import (
	"context"
)

// Command is the first line a client sends after connecting.
type Command string

const (
	CommandStop   Command = "STOP"
	CommandStatus Command = "STATUS"
)

// Server owns the TCP endpoint and answers client commands.
type Server interface {
	// Start binds the first port of the configured range and begins accepting.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted request, or the ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one client connection awaiting a response.
type Conn interface {
	Request() Request
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

type Request struct {
	Command Command
}

// Client delivers commands to a resident capture run.
type Client interface {
	// Send scans the port range and delivers cmd to the first resident found.
	// With no resident, it returns delivered=false and a nil error.
	Send(ctx context.Context, cmd Command) (delivered bool, text string, err error)
}

func NewServer() Server { return newTcpServer() }

func NewClient() Client { return newTcpClient() }
