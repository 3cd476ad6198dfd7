package distribution

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/tensorify/tensorconv/certs"
)

// alpnProtocol is the ALPN token subscribers must offer.
const alpnProtocol = "tensorconv"

// Session close error codes sent to clients via CloseWithError.
const (
	errStreamNotFound quic.ApplicationErrorCode = 1
	errBadRequest     quic.ApplicationErrorCode = 2
)

// subscribeTimeout is how long a new connection has to send its
// subscribe request before being dropped.
const subscribeTimeout = 10 * time.Second

// RelayLookup resolves a stream key to its relay, or nil if the stream
// is not live.
type RelayLookup func(key string) *Relay

// Server accepts QUIC subscriber connections. A subscriber opens one
// bidirectional stream, sends the stream key terminated by a newline,
// and then receives announce and unit messages until it disconnects.
type Server struct {
	log    *slog.Logger
	addr   string
	cert   *certs.CertInfo
	lookup RelayLookup
}

// NewServer creates a QUIC distribution server. If log is nil,
// slog.Default() is used.
func NewServer(addr string, cert *certs.CertInfo, lookup RelayLookup, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:    log.With("component", "quic-server"),
		addr:   addr,
		cert:   cert,
		lookup: lookup,
	}
}

// Start listens for subscriber connections. It blocks until the context
// is cancelled.
func (s *Server) Start(ctx context.Context) error {
	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{s.cert.TLSCert},
		NextProtos:   []string{alpnProtocol},
	}
	ln, err := quic.ListenAddr(s.addr, tlsConf, &quic.Config{
		MaxIdleTimeout: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("QUIC listen on %s: %w", s.addr, err)
	}
	s.log.Info("listening", "addr", s.addr)

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("QUIC accept: %w", err)
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn quic.Connection) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		s.log.Debug("accept stream failed", "remote", conn.RemoteAddr(), "error", err)
		return
	}

	stream.SetReadDeadline(time.Now().Add(subscribeTimeout))
	key, err := readSubscribeKey(stream)
	if err != nil {
		s.log.Debug("bad subscribe request", "remote", conn.RemoteAddr(), "error", err)
		conn.CloseWithError(errBadRequest, "bad subscribe request")
		return
	}
	stream.SetReadDeadline(time.Time{})

	relay := s.lookup(key)
	if relay == nil {
		s.log.Info("subscribe to unknown stream", "stream_key", key, "remote", conn.RemoteAddr())
		conn.CloseWithError(errStreamNotFound, "stream not found")
		return
	}

	sub := newSession(uuid.NewString(), stream, s.log.With("stream", key))
	defer sub.close()
	s.log.Info("subscriber connected", "stream_key", key, "session", sub.ID(), "remote", conn.RemoteAddr())

	relay.AddSubscriber(sub)
	defer relay.RemoveSubscriber(sub.ID())

	select {
	case <-ctx.Done():
	case <-stream.Context().Done():
	case <-sub.Done():
	}

	stats := sub.Stats()
	s.log.Info("subscriber disconnected", "stream_key", key, "session", sub.ID(),
		"units", stats.UnitsSent, "bytes", stats.BytesSent, "dropped", stats.Dropped)
	conn.CloseWithError(0, "")
}

func readSubscribeKey(stream quic.Stream) (string, error) {
	line, err := bufio.NewReaderSize(stream, 256).ReadString('\n')
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("empty stream key")
	}
	return key, nil
}
