package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"statusd/pkg/daemon"
	"statusd/pkg/protocol"
	"statusd/pkg/repo"
)

// client runs a status daemon in-process and speaks the wire protocol to it
// over pipe pairs. The dashboard is its only consumer, so requests are
// issued one at a time.
type client struct {
	mu     sync.Mutex
	reqW   io.WriteCloser
	cancel context.CancelFunc

	responses chan *protocol.Status
	nextID    int
}

// startClient wires up the pipes, starts the daemon and the response reader.
func startClient() (*client, error) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	d := daemon.New(daemon.Config{In: reqR, Out: respW, MaxIndexSize: repo.NoIndexLimit})

	c := &client{
		reqW:      reqW,
		cancel:    cancel,
		responses: make(chan *protocol.Status, 1),
	}

	go func() {
		defer d.Close()
		defer respW.Close()
		_ = d.Run(ctx)
	}()

	go func() {
		reader := protocol.NewReader(respR)
		for {
			fields, err := reader.ReadRecord()
			if err != nil {
				close(c.responses)
				return
			}
			status, err := protocol.ParseStatus(fields)
			if err != nil {
				continue
			}
			c.responses <- status
		}
	}()

	return c, nil
}

// fetch issues one status request and waits for its response. An abandoned
// request (unreadable or non-repository directory) produces no response at
// all; the timeout turns that silence into an error.
func (c *client) fetch(dir string, timeout time.Duration) (*protocol.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := strconv.Itoa(c.nextID)

	frame := make([]byte, 0, len(id)+len(dir)+2)
	frame = append(frame, id...)
	frame = append(frame, protocol.FieldSep)
	frame = append(frame, dir...)
	frame = append(frame, protocol.RecordSep)
	if _, err := c.reqW.Write(frame); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case status, ok := <-c.responses:
			if !ok {
				return nil, fmt.Errorf("daemon stopped")
			}
			if status.ID != id {
				// Answer to an earlier request that timed out; skip it.
				continue
			}
			return status, nil
		case <-deadline.C:
			return nil, fmt.Errorf("no status for %s (not a git repository?)", dir)
		}
	}
}

// Close shuts the daemon down.
func (c *client) Close() {
	c.cancel()
	_ = c.reqW.Close()
}
