package gateway

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/entitykit/entitykit/internal/core/observability/log"
)

const quicALPN = "entitykit-quic"

// QUICServer serves the command protocol over QUIC. Each stream carries
// newline-delimited JSON: one Request per line in, one Response per line out.
type QUICServer struct {
	addr       string
	dispatcher *Dispatcher
	tlsConf    *tls.Config
	log        log.Log
}

// NewQUICServer builds a QUIC listener. When certFile and keyFile are empty a
// self-signed certificate is generated, which is only suitable for
// development.
func NewQUICServer(addr string, dispatcher *Dispatcher, certFile, keyFile string, logger log.Log) (*QUICServer, error) {
	if logger == nil {
		logger = log.Provide()
	}

	var tlsConf *tls.Config
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load tls keypair: %w", err)
		}
		tlsConf = &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{quicALPN},
			MinVersion:   tls.VersionTLS13,
		}
	} else {
		generated, err := generateTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("generate tls config: %w", err)
		}
		logger.Warn("quic gateway using a self-signed certificate")
		tlsConf = generated
	}

	return &QUICServer{addr: addr, dispatcher: dispatcher, tlsConf: tlsConf, log: logger}, nil
}

// Serve accepts connections until ctx is cancelled.
func (s *QUICServer) Serve(ctx context.Context) error {
	listener, err := quic.ListenAddr(s.addr, s.tlsConf, &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("quic listen on %s: %w", s.addr, err)
	}
	defer listener.Close()

	s.log.Info("quic gateway listening", log.String("addr", s.addr))

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("quic accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *QUICServer) handleConn(ctx context.Context, conn *quic.Conn) {
	remote := conn.RemoteAddr().String()
	s.log.Debug("quic client connected", log.String("remote", remote))
	defer conn.CloseWithError(0, "connection closed")

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				s.log.Debug("quic client gone", log.String("remote", remote), log.Error(err))
			}
			return
		}
		go s.handleStream(ctx, stream, remote)
	}
}

func (s *QUICServer) handleStream(ctx context.Context, stream *quic.Stream, remote string) {
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	encoder := json.NewEncoder(stream)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := encoder.Encode(fail(err)); err != nil {
				return
			}
			continue
		}

		resp := s.dispatcher.Handle(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			s.log.Warn("quic write failed", log.String("remote", remote), log.Error(err))
			return
		}
	}
}

func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"entitykit"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{quicALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
