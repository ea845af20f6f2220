package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/marketplace-wallet/internal/adapters/bridge/bridgetest"
)

const testGenesis = "0x000000000b2bce3c70bc649a02749e8687721b09ed2e15997f466536b20bb127"

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	wallet := bridgetest.NewServer(t, testGenesis)
	require.NoError(t, writeProviderDescriptor(home, wallet.URL))

	stdout, stderr, err := runMW(t, binaryPath, home, "probe")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "[x]")
	assert.Contains(t, stdout, "extensionA")

	stdout, stderr, err = runMW(t, binaryPath, home, "connect", "extensionA")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Connected Browser extension as "+wallet.Address())

	stdout, stderr, err = runMW(t, binaryPath, home, "status")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "remembered: Browser extension")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "mw-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/mw")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build mw binary: %s", string(output))
	return binaryPath
}

func runMW(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"MW_NETWORK=test",
		"MW_SECRETS_BACKEND=file",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeProviderDescriptor(home string, endpoint string) error {
	dir := filepath.Join(home, ".mw", "providers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	descriptor := `apiVersion: wallet.marketplace/v1
kind: WalletProvider
metadata:
  name: browser-extension
spec:
  kind: extensionA
  endpoint: ` + endpoint + `
`

	return os.WriteFile(filepath.Join(dir, "extension.yaml"), []byte(descriptor), 0o644)
}
