package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "HTTP_ADDR", "WEBHOOK_SIGNING_SECRET", "WEBHOOK_EVENT_TYPE", "WEBHOOK_TOLERANCE",
		"PAYMENTS_PRODUCT_CODE", "PAYMENTS_DEFAULT_AMOUNT", "PAYMENTS_DEFAULT_CURRENCY",
		"PROCESSOR_BASE_URL", "PROCESSOR_API_KEY", "PROCESSOR_TIMEOUT", "LEDGER_TABLE",
		"LEDGER_WRITE_TIMEOUT", "PAYMENTS_QUEUE_URL", "METRICS_NAMESPACE", "RUN_LOCAL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBHOOK_SIGNING_SECRET", "whsec_c2VjcmV0")
	t.Setenv("PROCESSOR_API_KEY", "sk_test")
	t.Setenv("PAYMENTS_DEFAULT_AMOUNT", "799")
	t.Setenv("WEBHOOK_TOLERANCE", "2m")
	t.Setenv("RUN_LOCAL", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "whsec_c2VjcmV0", cfg.Webhook.SigningSecret)
	assert.Equal(t, 2*time.Minute, cfg.Webhook.Tolerance)
	assert.Equal(t, "payment.succeeded", cfg.Webhook.EventType)
	assert.Equal(t, "jungle-pass", cfg.Payments.ProductCode)
	assert.Equal(t, int64(799), cfg.Payments.Amount)
	assert.Equal(t, "USD", cfg.Payments.Currency)
	assert.True(t, cfg.Server.RunLocal)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
webhook:
  signing_secret: whsec_ZmlsZQ==
  tolerance: 90s
payments:
  product_code: river-pass
  currency: EUR
ledger:
  table_name: from-file
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LEDGER_TABLE", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "whsec_ZmlsZQ==", cfg.Webhook.SigningSecret)
	assert.Equal(t, 90*time.Second, cfg.Webhook.Tolerance)
	assert.Equal(t, "river-pass", cfg.Payments.ProductCode)
	assert.Equal(t, "EUR", cfg.Payments.Currency)
	assert.Equal(t, int64(499), cfg.Payments.Amount)
	assert.Equal(t, "from-env", cfg.Ledger.TableName)
}

func TestLoad_BadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAYMENTS_DEFAULT_AMOUNT", "four dollars")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("PAYMENTS_DEFAULT_AMOUNT", "")
	t.Setenv("LEDGER_WRITE_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("LEDGER_WRITE_TIMEOUT", "")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate_ReportsEveryMissingSetting(t *testing.T) {
	cfg := Default()
	cfg.Ledger.TableName = ""

	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingSigningSecret)
	assert.ErrorIs(t, err, ErrMissingProcessorKey)
	assert.ErrorIs(t, err, ErrMissingLedgerTable)
}

func TestMarshalZerologObject_RedactsCredentials(t *testing.T) {
	cfg := Default()
	cfg.Webhook.SigningSecret = "whsec_dG9wLXNlY3JldA=="
	cfg.Processor.APIKey = "sk_live_very_secret"

	var buf bytes.Buffer
	log := zerolog.New(&buf)
	log.Info().Object("config", &cfg).Msg("loaded")

	out := buf.String()
	assert.NotContains(t, out, "dG9wLXNlY3JldA")
	assert.NotContains(t, out, "sk_live_very_secret")
	assert.Contains(t, out, `"signing_secret_set":true`)
	assert.Contains(t, out, `"processor_key_set":true`)
}
