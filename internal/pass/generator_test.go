package pass

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mozilla.org/pkcs7"

	"walletpass/internal/common/config"
	commonerrors "walletpass/internal/common/errors"
	"walletpass/internal/common/logger"
	"walletpass/internal/pass/passtest"
)

const testTemplate = `{
  "formatVersion": 1,
  "serialNumber": "{{serialNumber}}",
  "description": "Legacy pass",
  "storeCard": {
    "primaryFields": [
      {"key": "amount", "label": "{{category}}", "value": "{{amount}}"}
    ],
    "secondaryFields": [
      {"key": "rate", "label": "Withdrawal Rate", "value": "{{withdrawalRate}}"},
      {"key": "probability", "label": "Success Probability", "value": "{{successProbability}}"}
    ],
    "backFields": [
      {"key": "explanation", "label": "How it works", "value": "{{explanation}}"}
    ]
  },
  "barcode": {"message": "{{barcodeMessage}}", "format": "PKBarcodeFormatQR"}
}`

const (
	testCertVar  = "TEST_PASS_SIGNER_CERT"
	testKeyVar   = "TEST_PASS_SIGNER_KEY"
	testChainVar = "TEST_PASS_SIGNER_CHAIN"
)

func testRequest() *Request {
	return &Request{
		SerialNumber:       "ABC123",
		Amount:             "$50,000",
		Category:           "Perpetual",
		WithdrawalRate:     "4.0%",
		SuccessProbability: "92%",
		Explanation:        "Withdraw 4.0% per year and the principal outlives you.",
		BarcodeMessage:     "ABC123",
	}
}

// newTestGenerator lays out a full assets tree (template, images, work dir)
// in temp space and returns a generator over it.
func newTestGenerator(t *testing.T) (*Generator, config.PassConfig, config.CredentialsConfig) {
	t.Helper()

	assetsRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(assetsRoot, "templates"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(assetsRoot, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assetsRoot, "templates", "pass.json"), []byte(testTemplate), 0o644))
	for _, name := range []string{"icon.png", "icon@2x.png", "logo.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(assetsRoot, "images", name), []byte("png:"+name), 0o644))
	}

	cfg := config.PassConfig{
		AssetsRoot:     assetsRoot,
		TemplateFile:   "templates/pass.json",
		ImagesDir:      "images",
		WorkDir:        filepath.Join(t.TempDir(), "work"),
		RequiredAssets: []string{"icon.png", "icon@2x.png", "logo.png"},
		OptionalAssets: []string{"logo@2x.png"},
	}
	credCfg := config.CredentialsConfig{
		CertEnvVar:  testCertVar,
		KeyEnvVar:   testKeyVar,
		ChainEnvVar: testChainVar,
		CertFile:    "certs/signerCert.pem",
		KeyFile:     "certs/signerKey.pem",
		ChainFile:   "certs/chain.pem",
	}

	gen, err := New(cfg, credCfg, logger.NewTestLogger(t), nil)
	require.NoError(t, err)
	return gen, cfg, credCfg
}

func setEnvCredentials(t *testing.T) *passtest.Credentials {
	t.Helper()
	creds, err := passtest.Generate()
	require.NoError(t, err)
	t.Setenv(testCertVar, string(creds.CertPEM))
	t.Setenv(testKeyVar, string(creds.KeyPEM))
	t.Setenv(testChainVar, string(creds.ChainPEM))
	return creds
}

func unpack(t *testing.T, archiveBytes []byte) map[string][]byte {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(archiveBytes), int64(len(archiveBytes)))
	require.NoError(t, err)

	files := make(map[string][]byte)
	for _, f := range reader.File {
		assert.Equal(t, filepath.Base(f.Name), f.Name, "archive entry %q is nested", f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = content
	}
	return files
}

func TestGenerateEndToEnd(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	creds := setEnvCredentials(t)

	result, err := gen.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	require.NotEmpty(t, result.Archive)

	files := unpack(t, result.Archive)
	require.Contains(t, files, "pass.json")
	require.Contains(t, files, "manifest.json")
	require.Contains(t, files, "signature")

	// Substituted template carries the request's literal display strings.
	rendered := string(files["pass.json"])
	for _, want := range []string{"ABC123", "$50,000", "4.0%", "92%", "Perpetual"} {
		assert.Contains(t, rendered, want)
	}
	assert.NotContains(t, rendered, "{{")

	// Manifest covers the template plus every asset, nothing else.
	var digests map[string]string
	require.NoError(t, json.Unmarshal(files["manifest.json"], &digests))
	assert.Equal(t, map[string]bool{
		"pass.json": true, "icon.png": true, "icon@2x.png": true, "logo.png": true,
	}, keysOf(digests))

	for name, digest := range digests {
		sum := sha1.Sum(files[name])
		assert.Equalf(t, hex.EncodeToString(sum[:]), digest, "digest mismatch for %s", name)
	}

	// Signature verifies against the exact manifest bytes in the archive.
	p7, err := pkcs7.Parse(files["signature"])
	require.NoError(t, err)
	require.NotEmpty(t, p7.Signers)
	manifestSum := sha1.Sum(files["manifest.json"])
	pub := creds.Certificate.PublicKey.(*rsa.PublicKey)
	require.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA1, manifestSum[:], p7.Signers[0].EncryptedDigest))
}

func TestGenerateMissingCategoryLeavesNoDiskSideEffects(t *testing.T) {
	gen, cfg, _ := newTestGenerator(t)
	setEnvCredentials(t)

	req := testRequest()
	req.Category = ""

	_, err := gen.Generate(context.Background(), req)
	require.Error(t, err)

	stdErr := commonerrors.AsStandard(err)
	assert.Equal(t, commonerrors.ErrCodeRequestInvalid, stdErr.Code)
	assert.Contains(t, stdErr.Details, "category")

	// Validation failed before staging, so the work root was never created.
	_, statErr := os.Stat(cfg.WorkDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateWithoutCredentialsCleansUpStaging(t *testing.T) {
	gen, cfg, _ := newTestGenerator(t)

	_, err := gen.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeCredentialUnavailable, commonerrors.AsStandard(err).Code)

	// The pipeline reached Signing, so staging existed; cleanup must have
	// removed it on the failure path.
	entries, readErr := os.ReadDir(cfg.WorkDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestGenerateCleansUpStagingOnSuccess(t *testing.T) {
	gen, cfg, _ := newTestGenerator(t)
	setEnvCredentials(t)

	_, err := gen.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	entries, readErr := os.ReadDir(cfg.WorkDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestGenerateConcurrentRequestsSameSerial(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	setEnvCredentials(t)

	const workers = 4
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := gen.Generate(context.Background(), testRequest())
			results <- err
		}()
	}
	for i := 0; i < workers; i++ {
		assert.NoError(t, <-results)
	}
}

func TestGenerateSkipsAbsentOptionalAssets(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	setEnvCredentials(t)

	result, err := gen.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	files := unpack(t, result.Archive)
	assert.NotContains(t, files, "logo@2x.png")
}

func TestGenerateIncludesOptionalAssetWhenPresent(t *testing.T) {
	gen, cfg, _ := newTestGenerator(t)
	setEnvCredentials(t)

	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.AssetsRoot, "images", "logo@2x.png"), []byte("png:logo@2x"), 0o644))

	result, err := gen.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	files := unpack(t, result.Archive)
	assert.Contains(t, files, "logo@2x.png")

	var digests map[string]string
	require.NoError(t, json.Unmarshal(files["manifest.json"], &digests))
	assert.Contains(t, digests, "logo@2x.png")
}

func TestNewFailsOnMissingTemplate(t *testing.T) {
	cfg := config.PassConfig{
		AssetsRoot:   t.TempDir(),
		TemplateFile: "templates/pass.json",
		ImagesDir:    "images",
	}
	_, err := New(cfg, config.CredentialsConfig{}, logger.NewNoOpLogger(), nil)
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeTemplateMissing, commonerrors.AsStandard(err).Code)
}

func TestNewFailsOnMissingRequiredAsset(t *testing.T) {
	assetsRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(assetsRoot, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assetsRoot, "templates", "pass.json"), []byte("{}"), 0o644))

	cfg := config.PassConfig{
		AssetsRoot:     assetsRoot,
		TemplateFile:   "templates/pass.json",
		ImagesDir:      "images",
		RequiredAssets: []string{"icon.png"},
	}
	_, err := New(cfg, config.CredentialsConfig{}, logger.NewNoOpLogger(), nil)
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeTemplateMissing, commonerrors.AsStandard(err).Code)
}

func keysOf(m map[string]string) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}
