package echoserver

import (
	"sync"

	"github.com/joeycumines/go-nbio"
)

// Connection handler states.
const (
	stReadRequest = iota
	stWriteResponse
	stWSRead
	stWSWrite
)

// bufPool recycles per-connection receive buffers.
var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 4096)
		return &b
	},
}

// connTask drives one accepted connection as a poll state machine: read the
// request head, write the routed response, then (for upgrades) echo
// WebSocket frames. It composes the runtime's recv/send futures, so every
// state returns pending exactly when the underlying future parked.
type connTask struct {
	srv  *Server
	rbuf *[]byte

	recv nbio.RecvFuture
	send nbio.SendFuture

	acc     []byte // request head accumulator, then frame accumulator
	out     []byte // pending outbound frames
	fd      int
	state   int
	upgrade bool
	closing bool
}

func newConnTask(srv *Server, fd int) *connTask {
	c := &connTask{
		srv:   srv,
		fd:    fd,
		rbuf:  bufPool.Get().(*[]byte),
		state: stReadRequest,
	}
	c.recv = nbio.RecvFuture{FD: fd, Buf: *c.rbuf}
	c.send = nbio.SendFuture{FD: fd}
	return c
}

// Poll implements nbio.Future.
func (c *connTask) Poll(w nbio.Waker) bool {
	for {
		switch c.state {
		case stReadRequest:
			n, done, err := c.recv.Poll(w)
			if !done {
				return false
			}
			if err != nil || n == 0 {
				return c.close()
			}
			c.acc = append(c.acc, (*c.rbuf)[:n]...)
			req, hn, complete, perr := parseRequest(c.acc)
			if perr != nil {
				c.send.Reset(respBadRequest)
				c.state = stWriteResponse
				continue
			}
			if !complete {
				if len(c.acc) > maxRequestBytes {
					return c.close()
				}
				c.recv.Reset(*c.rbuf)
				continue
			}
			c.route(req)
			// Bytes past the request head may already hold the first frame.
			c.acc = append(c.acc[:0:0], c.acc[hn:]...)
			c.state = stWriteResponse

		case stWriteResponse:
			done, err := c.send.Poll(w)
			if !done {
				return false
			}
			if err != nil || !c.upgrade {
				return c.close()
			}
			c.srv.logWS(c.fd)
			c.upgrade = false
			c.recv.Reset(*c.rbuf)
			c.state = stWSRead

		case stWSRead:
			if c.consumeFrames(); len(c.out) > 0 {
				c.send.Reset(c.out)
				c.state = stWSWrite
				continue
			}
			if c.closing {
				return c.close()
			}
			n, done, err := c.recv.Poll(w)
			if !done {
				return false
			}
			if err != nil || n == 0 {
				return c.close()
			}
			c.acc = append(c.acc, (*c.rbuf)[:n]...)
			c.recv.Reset(*c.rbuf)

		case stWSWrite:
			done, err := c.send.Poll(w)
			if !done {
				return false
			}
			if err != nil {
				return c.close()
			}
			c.out = c.out[:0]
			if c.closing {
				return c.close()
			}
			c.state = stWSRead
		}
	}
}

// route resolves the parsed request into a response and logs the hit.
func (c *connTask) route(req *request) {
	c.srv.logHTTP(c.fd, req.path)
	switch {
	case req.method == "GET" && req.path == "/ws" && req.isUpgrade():
		c.send.Reset(upgradeResponse(req.headers["sec-websocket-key"]))
		c.upgrade = true
	case req.method == "GET" && req.path == "/":
		c.send.Reset(httpResponse("200 OK", "text/html; charset=utf-8", indexPage))
	default:
		c.send.Reset(respNotFound)
	}
}

// consumeFrames parses complete frames off the accumulator, appending echo,
// pong and close frames to the pending output.
func (c *connTask) consumeFrames() {
	for !c.closing {
		f, n, err := parseFrame(c.acc)
		if err != nil {
			c.out = appendCloseFrame(c.out, 1002)
			c.closing = true
			break
		}
		if n == 0 {
			break
		}
		c.acc = c.acc[n:]
		switch {
		case !f.fin || f.opcode == opContinuation:
			c.out = appendCloseFrame(c.out, 1003)
			c.closing = true
		case f.opcode == opText || f.opcode == opBinary:
			c.out = appendFrame(c.out, f.opcode, f.payload)
		case f.opcode == opPing:
			c.out = appendFrame(c.out, opPong, f.payload)
		case f.opcode == opClose:
			c.out = appendCloseFrame(c.out, 1000)
			c.closing = true
		}
	}
}

// close releases the descriptor and buffer; the task completes.
func (c *connTask) close() bool {
	nbio.CloseFD(c.fd)
	bufPool.Put(c.rbuf)
	c.rbuf = nil
	return true
}
