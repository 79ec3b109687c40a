package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	commonerrors "walletpass/internal/common/errors"
)

// Credentials holds the parsed signing materials ready for use by the
// manifest signer.
type Credentials struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer
	Chain       []*x509.Certificate
}

// Parse decodes resolved PEM material into usable crypto types. Each failure
// mode is surfaced distinctly: malformed PEM, a key that does not belong to
// the certificate, and a key algorithm the signer cannot use all require
// different operator remediation.
func Parse(m *Material) (*Credentials, error) {
	cert, err := parseCertificate(m.CertificatePEM)
	if err != nil {
		return nil, commonerrors.NewMalformedPEMError(materialCert, err)
	}

	key, err := parsePrivateKey(m.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}

	chain, err := parseChain(m.ChainPEM)
	if err != nil {
		return nil, commonerrors.NewMalformedPEMError(materialChain, err)
	}

	if !keyMatchesCertificate(key, cert) {
		return nil, commonerrors.NewKeyMismatchError()
	}

	return &Credentials{
		Certificate: cert,
		PrivateKey:  key,
		Chain:       chain,
	}, nil
}

func parseCertificate(pemBytes []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no CERTIFICATE block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

// parseChain decodes every CERTIFICATE block in the PEM text. Trust chains
// are commonly shipped as concatenated PEM; stopping at the first block
// would strand the verifier without a path to the root.
func parseChain(pemBytes []byte) ([]*x509.Certificate, error) {
	var chain []*x509.Certificate
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("chain certificate %d: %w", len(chain), err)
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no CERTIFICATE blocks found")
	}
	return chain, nil
}

func parsePrivateKey(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, commonerrors.NewMalformedPEMError(materialKey, fmt.Errorf("no PEM block found"))
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, commonerrors.NewMalformedPEMError(materialKey, err)
		}
		return key, nil
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, commonerrors.NewMalformedPEMError(materialKey, err)
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, commonerrors.NewMalformedPEMError(materialKey, err)
		}
		switch key := parsed.(type) {
		case *rsa.PrivateKey:
			return key, nil
		case *ecdsa.PrivateKey:
			return key, nil
		default:
			return nil, commonerrors.NewUnsupportedKeyError(fmt.Sprintf("%T", parsed))
		}
	default:
		return nil, commonerrors.NewMalformedPEMError(materialKey, fmt.Errorf("unexpected PEM block type %q", block.Type))
	}
}

func keyMatchesCertificate(key crypto.Signer, cert *x509.Certificate) bool {
	type equaler interface {
		Equal(x crypto.PublicKey) bool
	}
	pub, ok := key.Public().(equaler)
	if !ok {
		return false
	}
	return pub.Equal(cert.PublicKey)
}
