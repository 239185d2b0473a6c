// Package tls builds the TLS configuration of the webmap server, either
// from certificate files or from a throwaway self-signed certificate for
// local development.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// DefaultHosts are the names a development certificate is valid for.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// DefaultValidity is the lifetime of a development certificate.
const DefaultValidity = 30 * 24 * time.Hour

// CertificateConfig contains options for certificate generation.
type CertificateConfig struct {
	// Organization name for the certificate
	Organization string
	// Hosts are DNS names or IP addresses. The first one is the CN.
	Hosts []string
	// Validity duration
	ValidFor time.Duration
}

// DefaultCertificateConfig returns a configuration suitable for local
// development.
func DefaultCertificateConfig() *CertificateConfig {
	return &CertificateConfig{
		Organization: "webmap development",
		Hosts:        DefaultHosts,
		ValidFor:     DefaultValidity,
	}
}

// SelfSigned generates an in-memory ECDSA P-256 certificate signed by its
// own key.
func SelfSigned(cfg *CertificateConfig) (tls.Certificate, error) {
	if cfg == nil {
		cfg = DefaultCertificateConfig()
	}
	if len(cfg.Hosts) == 0 {
		return tls.Certificate{}, errors.New("at least one host is required")
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	validFor := cfg.ValidFor
	if validFor <= 0 {
		validFor = DefaultValidity
	}
	notBefore := time.Now().Add(-time.Minute)
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{cfg.Organization},
			CommonName:   cfg.Hosts[0],
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range cfg.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// LoadKeyPair reads a PEM certificate and key from disk.
func LoadKeyPair(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load key pair %s, %s: %w", certFile, keyFile, err)
	}
	return cert, nil
}

// ServerConfig returns a server TLS configuration for cert. With http3 the
// h3 protocol is advertised ahead of HTTP/2 and HTTP/1.1.
func ServerConfig(cert tls.Certificate, http3 bool) *tls.Config {
	protos := []string{"h2", "http/1.1"}
	if http3 {
		protos = append([]string{"h3"}, protos...)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		NextProtos:   protos,
	}
}
