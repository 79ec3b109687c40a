// Package passkit inspects and verifies signed pass bundles. It is the
// consumer-side counterpart of the generation pipeline: given a .pkpass
// archive it checks the layout, the manifest digests and the detached
// signature.
package passkit

import (
	"archive/zip"
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"go.mozilla.org/pkcs7"
)

const (
	manifestName  = "manifest.json"
	signatureName = "signature"
)

// Bundle is an unpacked pass archive held in memory.
type Bundle struct {
	// Files maps every archive entry name to its content, including the
	// manifest and signature.
	Files map[string][]byte
}

// Inspect unpacks a pass archive and checks its basic layout: a readable
// flat zip that carries both a manifest and a signature.
func Inspect(data []byte) (*Bundle, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a readable zip archive: %w", err)
	}

	files := make(map[string][]byte, len(reader.File))
	for _, f := range reader.File {
		if f.Name != filepath.Base(f.Name) {
			return nil, fmt.Errorf("archive entry %q is not at the bundle root", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %q: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read entry %q: %w", f.Name, err)
		}
		files[f.Name] = content
	}

	if _, ok := files[manifestName]; !ok {
		return nil, fmt.Errorf("bundle has no %s", manifestName)
	}
	if _, ok := files[signatureName]; !ok {
		return nil, fmt.Errorf("bundle has no %s", signatureName)
	}

	return &Bundle{Files: files}, nil
}

// VerifyManifest recomputes the SHA-1 digest of every content file and
// compares it against the manifest. It also rejects manifest entries that
// have no backing file and files the manifest does not cover.
func (b *Bundle) VerifyManifest() error {
	var digests map[string]string
	if err := json.Unmarshal(b.Files[manifestName], &digests); err != nil {
		return fmt.Errorf("manifest is not a JSON digest map: %w", err)
	}

	for name, want := range digests {
		content, ok := b.Files[name]
		if !ok {
			return fmt.Errorf("manifest lists %q but the bundle does not contain it", name)
		}
		sum := sha1.Sum(content)
		if got := hex.EncodeToString(sum[:]); got != want {
			return fmt.Errorf("digest mismatch for %q: manifest %s, actual %s", name, want, got)
		}
	}

	for name := range b.Files {
		if name == manifestName || name == signatureName {
			continue
		}
		if _, ok := digests[name]; !ok {
			return fmt.Errorf("bundle file %q is not covered by the manifest", name)
		}
	}
	return nil
}

// VerifySignature checks the detached PKCS#7 signature against the manifest
// bytes and returns the certificate that produced it. Verification is done
// directly against the embedded certificates' public keys, so SHA-1 signed
// bundles verify regardless of the host's x509 policy.
func (b *Bundle) VerifySignature() (*x509.Certificate, error) {
	p7, err := pkcs7.Parse(b.Files[signatureName])
	if err != nil {
		return nil, fmt.Errorf("signature is not valid PKCS#7: %w", err)
	}
	if len(p7.Signers) == 0 {
		return nil, fmt.Errorf("signature carries no signer info")
	}
	if len(p7.Certificates) == 0 {
		return nil, fmt.Errorf("signature embeds no certificates")
	}

	sum := sha1.Sum(b.Files[manifestName])
	digest := p7.Signers[0].EncryptedDigest

	for _, cert := range p7.Certificates {
		switch pub := cert.PublicKey.(type) {
		case *rsa.PublicKey:
			if rsa.VerifyPKCS1v15(pub, crypto.SHA1, sum[:], digest) == nil {
				return cert, nil
			}
		case *ecdsa.PublicKey:
			if ecdsa.VerifyASN1(pub, sum[:], digest) {
				return cert, nil
			}
		}
	}
	return nil, fmt.Errorf("signature does not verify against any embedded certificate")
}

// Verify runs the full check: layout, manifest digests, then signature.
func Verify(data []byte) (*x509.Certificate, error) {
	bundle, err := Inspect(data)
	if err != nil {
		return nil, err
	}
	if err := bundle.VerifyManifest(); err != nil {
		return nil, err
	}
	return bundle.VerifySignature()
}
