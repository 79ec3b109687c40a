// Package signer produces the detached CMS signature over the manifest.
package signer

import (
	"go.mozilla.org/pkcs7"

	commonerrors "walletpass/internal/common/errors"
	"walletpass/internal/pass/credentials"
)

// Sign produces a DER-encoded detached PKCS#7 signature over manifestBytes.
//
// The consumer's verifier dictates the shape of this structure: SHA-1 digest,
// no authenticated attributes (verifiers in the wild reject signatures that
// carry the default signing-time/content-type attribute set), the original
// content omitted, and the signing certificate plus the full trust chain
// embedded so verification needs no external lookups.
func Sign(manifestBytes []byte, creds *credentials.Credentials) ([]byte, error) {
	signedData, err := pkcs7.NewSignedData(manifestBytes)
	if err != nil {
		return nil, commonerrors.NewSigningFailedError(err)
	}
	signedData.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA1)

	for _, chainCert := range creds.Chain {
		signedData.AddCertificate(chainCert)
	}

	if err := signedData.SignWithoutAttr(creds.Certificate, creds.PrivateKey, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, commonerrors.NewSigningFailedError(err)
	}

	signedData.Detach()

	der, err := signedData.Finish()
	if err != nil {
		return nil, commonerrors.NewSigningFailedError(err)
	}
	return der, nil
}
