//go:build linux

package echoserver

import (
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-nbio"
	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
	"gopkg.in/tomb.v2"
)

// Config carries the daemon's settings. Zero fields take the documented
// defaults.
type Config struct {
	// IP is the dotted-quad listen address. Default 0.0.0.0.
	IP string
	// LogPath, when non-empty, is opened truncated and installed as the
	// runtime's JSON log sink.
	LogPath string
	// Workers is the worker pool size. Default 16.
	Workers int
	// MaxSlots overrides the runtime's task slot capacity when positive.
	MaxSlots int
	// Port is the listen port; zero binds an ephemeral port.
	Port uint16
}

// DefaultLogPath is where the daemon logs unless configured otherwise.
const DefaultLogPath = "/tmp/async-nostd.log"

// Server hosts the echo service: one listener, one acceptor goroutine, one
// worker pool, one task per connection.
type Server struct {
	rt      *nbio.Runtime
	log     *logiface.Logger[logiface.Event]
	t       tomb.Tomb
	lfd     int
	port    uint16
	ip      string
	workers int

	stopping atomic.Bool
	keep     nbio.Handle
}

// New binds the listener and prepares the runtime. Socket, bind and listen
// failures are returned before any goroutine starts.
func New(cfg Config) (*Server, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 16
	}
	if cfg.IP == "" {
		cfg.IP = "0.0.0.0"
	}

	var log *logiface.Logger[logiface.Event]
	if cfg.LogPath != "" {
		var err error
		log, err = nbio.NewFileLogger(cfg.LogPath, logiface.LevelInformational)
		if err != nil {
			return nil, err
		}
		nbio.SetLogger(log)
	}

	var opts []nbio.Option
	if cfg.MaxSlots > 0 {
		opts = append(opts, nbio.WithMaxSlots(cfg.MaxSlots))
	}
	if log != nil {
		opts = append(opts, nbio.WithLogger(log))
	}
	rt, err := nbio.New(opts...)
	if err != nil {
		return nil, err
	}

	lfd, err := nbio.ListenTCP(cfg.IP, cfg.Port)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	port, err := nbio.LocalPort(lfd)
	if err != nil {
		nbio.CloseFD(lfd)
		_ = rt.Close()
		return nil, err
	}

	return &Server{
		rt:      rt,
		log:     log,
		lfd:     lfd,
		port:    port,
		ip:      cfg.IP,
		workers: cfg.Workers,
	}, nil
}

// Addr returns the bound ip:port.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.ip, s.port)
}

// Runtime exposes the underlying runtime, for inspection in tests.
func (s *Server) Runtime() *nbio.Runtime {
	return s.rt
}

// Serve starts the acceptor and runs the worker pool on the calling
// goroutine until Stop. A keep-alive task pins the pool through idle
// periods with no connections.
func (s *Server) Serve() error {
	s.keep = s.rt.Register(nbio.FutureFunc(func(nbio.Waker) bool {
		return s.stopping.Load()
	}))
	if !s.keep.Valid() {
		return fmt.Errorf("echoserver: could not register keep-alive task")
	}

	s.t.Go(func() error {
		err := nbio.AcceptLoop(s.lfd, s.handleConn)
		if s.stopping.Load() {
			return nil
		}
		return err
	})

	s.rt.Run(s.workers)

	s.t.Kill(nil)
	err := s.t.Wait()
	if cerr := s.rt.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return err
}

// Stop shuts the listener down (unblocking the acceptor), completes the
// keep-alive task, and lets Serve return once in-flight connection tasks
// finish.
func (s *Server) Stop() {
	if !s.stopping.CompareAndSwap(false, true) {
		return
	}
	_ = unix.Shutdown(s.lfd, unix.SHUT_RDWR)
	nbio.CloseFD(s.lfd)
	s.rt.Wake(s.keep)
}

// handleConn runs on the acceptor goroutine: register a connection task and
// schedule it. When the slot table is saturated the connection is dropped.
func (s *Server) handleConn(fd int) {
	h := s.rt.Register(newConnTask(s, fd))
	if !h.Valid() {
		s.log.Warning().
			Int("fd", fd).
			Log("[HTTP] dropping connection, scheduler saturated")
		nbio.CloseFD(fd)
		return
	}
	s.rt.Wake(h)
}

func (s *Server) logHTTP(fd int, route string) {
	s.log.Info().
		Int("fd", fd).
		Str("route", route).
		Logf("[HTTP] fd=%d route=%s", fd, route)
}

func (s *Server) logWS(fd int) {
	s.log.Info().
		Int("fd", fd).
		Logf("[WS] fd=%d handshake complete", fd)
}
