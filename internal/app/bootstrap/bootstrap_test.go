package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/esc-funnel/internal/config"
	"github.com/wolfman30/esc-funnel/internal/funnel"
	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/internal/notify"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.New("error")
}

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, quietLogger(), true))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, quietLogger(), true))
}

func TestBuildRedisClientVerifiesConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, quietLogger(), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, quietLogger(), true))
}

func TestBuildDraftStore(t *testing.T) {
	cfg := &appconfig.Config{}
	_, inMemory := BuildDraftStore(cfg, nil, quietLogger()).(*leads.InMemoryRepository)
	assert.True(t, inMemory)

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, quietLogger(), false)
	t.Cleanup(func() { _ = client.Close() })
	_, redisBacked := BuildDraftStore(cfg, client, quietLogger()).(*leads.RedisDraftStore)
	assert.True(t, redisBacked)
}

func TestBuildTenantsBuiltin(t *testing.T) {
	cfg := &appconfig.Config{ClickUpDefaultListID: "555"}
	tenants, err := BuildTenants(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "builtin", tenants.Source)
	assert.Equal(t, "555", tenants.Default.Destination.ListID)
	assert.Equal(t, "555", tenants.Lookup("no-such-tenant").Destination.ListID)
	serra := tenants.Lookup("serra")
	assert.Equal(t, "serra", serra.Slug)
}

func TestBuildTenantsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	doc := `
default:
  destination:
    list_id: "100"
tenants:
  - slug: aberto
    display_name: Aberto
    variant: simple
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	tenants, err := BuildTenants(context.Background(), &appconfig.Config{TenantsFile: path, ClickUpDefaultListID: "999"}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "file", tenants.Source)
	assert.Equal(t, "100", tenants.Default.Destination.ListID, "file default wins over env")
	assert.Equal(t, 1, tenants.Registry.Len())
}

func TestBuildTenantsRejectsUnknownVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	doc := `
tenants:
  - slug: quebrado
    variant: carousel
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := BuildTenants(context.Background(), &appconfig.Config{TenantsFile: path}, quietLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, funnel.ErrUnknownVariant)
}

func TestBuildTenantsMissingFile(t *testing.T) {
	_, err := BuildTenants(context.Background(), &appconfig.Config{TenantsFile: "/nonexistent/tenants.yaml"}, quietLogger())
	require.Error(t, err)
}

func TestBuildEmailSenderSelection(t *testing.T) {
	ctx := context.Background()

	sender, provider, err := BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "auto"}, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "stub", provider)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	sender, provider, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "auto", SendGridAPIKey: "SG.key"}, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "sendgrid", provider)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	_, _, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "sendgrid"}, nil, quietLogger())
	require.Error(t, err)

	loads := 0
	loader := func(context.Context) (aws.Config, error) {
		loads++
		return aws.Config{Region: "sa-east-1"}, nil
	}
	sender, provider, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "auto", SESFromEmail: "leads@esccredito.com.br"}, loader, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "ses", provider)
	assert.IsType(t, &notify.SESSender{}, sender)
	assert.Equal(t, 1, loads)

	failing := func(context.Context) (aws.Config, error) { return aws.Config{}, errors.New("no credentials") }
	_, _, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "ses"}, failing, quietLogger())
	require.Error(t, err)
}

func TestRelayURL(t *testing.T) {
	assert.Equal(t, "https://relay.example/api/clickup", RelayURL(&appconfig.Config{RelayURL: " https://relay.example/api/clickup "}))
	assert.Equal(t, "https://esccredito.com.br/api/clickup", RelayURL(&appconfig.Config{PublicBaseURL: "https://esccredito.com.br/"}))
	assert.Equal(t, "http://localhost:8080/api/clickup", RelayURL(&appconfig.Config{Port: "8080"}))
}

func TestBuildRelayRejectsUnknownMode(t *testing.T) {
	tenants, err := BuildTenants(context.Background(), &appconfig.Config{}, quietLogger())
	require.NoError(t, err)

	_, err = BuildRelay(&appconfig.Config{RelayDestinationMode: "roundrobin"}, tenants, nil, nil, false, quietLogger())
	require.Error(t, err)

	h, err := BuildRelay(&appconfig.Config{RelayDestinationMode: "fixed"}, tenants, notify.NewStubEmailSender(quietLogger()), nil, true, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestBuildSubmitter(t *testing.T) {
	adapter, err := BuildSubmitter(&appconfig.Config{Port: "8080"}, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, adapter)

	_, err = BuildSubmitter(&appconfig.Config{Port: "8080", RelayDestinationMode: "bogus"}, quietLogger())
	require.Error(t, err)
}

func TestBuildAnalyticsWithoutQueue(t *testing.T) {
	tenants, err := BuildTenants(context.Background(), &appconfig.Config{}, quietLogger())
	require.NoError(t, err)

	d, err := BuildAnalytics(context.Background(), &appconfig.Config{}, tenants, nil, nil, quietLogger())
	require.NoError(t, err)
	require.NoError(t, d.Close(context.Background()))

	_, err = BuildAnalytics(context.Background(), &appconfig.Config{AnalyticsQueueURL: "https://sqs.example/q"}, tenants, nil, nil, quietLogger())
	require.Error(t, err)
}
