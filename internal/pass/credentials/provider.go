// Package credentials resolves and parses the signing certificate, private
// key and trust chain used to sign pass manifests.
package credentials

import (
	"os"
	"path/filepath"
	"strings"

	commonerrors "walletpass/internal/common/errors"
)

const (
	materialCert  = "signer certificate"
	materialKey   = "signer private key"
	materialChain = "trust chain"
)

// Material holds the raw PEM text of the three credential inputs, before any
// cryptographic parsing. Materials come entirely from one source; the
// providers never mix.
type Material struct {
	CertificatePEM []byte
	PrivateKeyPEM  []byte
	ChainPEM       []byte
}

// Provider is one source of credential material. Resolve either fully
// succeeds, fully declines (nothing of it is configured), or errors because
// the source is partially populated — partial credentials are a
// misconfiguration, never a silent fallback.
type Provider interface {
	Name() string
	Resolve() (*Material, bool, error)
}

// EnvProvider reads the three PEM values from named environment variables.
type EnvProvider struct {
	CertVar  string
	KeyVar   string
	ChainVar string
}

func (p *EnvProvider) Name() string { return "environment" }

func (p *EnvProvider) Resolve() (*Material, bool, error) {
	cert := os.Getenv(p.CertVar)
	key := os.Getenv(p.KeyVar)
	chain := os.Getenv(p.ChainVar)

	if cert == "" && key == "" && chain == "" {
		return nil, false, nil
	}

	var missing []string
	if cert == "" {
		missing = append(missing, materialCert+" ("+p.CertVar+")")
	}
	if key == "" {
		missing = append(missing, materialKey+" ("+p.KeyVar+")")
	}
	if chain == "" {
		missing = append(missing, materialChain+" ("+p.ChainVar+")")
	}
	if len(missing) > 0 {
		return nil, false, commonerrors.NewCredentialUnavailableError(p.Name(), missing)
	}

	return &Material{
		CertificatePEM: []byte(cert),
		PrivateKeyPEM:  []byte(key),
		ChainPEM:       []byte(chain),
	}, true, nil
}

// FileProvider reads the three PEM files from fixed paths under an assets
// root.
type FileProvider struct {
	Root      string
	CertFile  string
	KeyFile   string
	ChainFile string
}

func (p *FileProvider) Name() string { return "assets directory" }

func (p *FileProvider) Resolve() (*Material, bool, error) {
	certPath := filepath.Join(p.Root, p.CertFile)
	keyPath := filepath.Join(p.Root, p.KeyFile)
	chainPath := filepath.Join(p.Root, p.ChainFile)

	cert, certErr := os.ReadFile(certPath)
	key, keyErr := os.ReadFile(keyPath)
	chain, chainErr := os.ReadFile(chainPath)

	if certErr != nil && keyErr != nil && chainErr != nil {
		return nil, false, nil
	}

	var missing []string
	if certErr != nil {
		missing = append(missing, materialCert+" ("+certPath+")")
	}
	if keyErr != nil {
		missing = append(missing, materialKey+" ("+keyPath+")")
	}
	if chainErr != nil {
		missing = append(missing, materialChain+" ("+chainPath+")")
	}
	if len(missing) > 0 {
		return nil, false, commonerrors.NewCredentialUnavailableError(p.Name(), missing)
	}

	return &Material{
		CertificatePEM: cert,
		PrivateKeyPEM:  key,
		ChainPEM:       chain,
	}, true, nil
}

// Resolve tries providers in order and returns the first full match.
// Credentials may rotate, so callers resolve fresh per signing operation and
// never cache the result across requests.
func Resolve(providers ...Provider) (*Material, error) {
	var tried []string
	for _, p := range providers {
		material, ok, err := p.Resolve()
		if err != nil {
			return nil, err
		}
		if ok {
			return material, nil
		}
		tried = append(tried, p.Name())
	}
	return nil, commonerrors.NewCredentialUnavailableError(
		strings.Join(tried, ", "),
		[]string{materialCert, materialKey, materialChain},
	)
}
