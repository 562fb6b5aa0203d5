package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/esc-funnel/internal/analytics"
	"github.com/wolfman30/esc-funnel/internal/clickup"
	appconfig "github.com/wolfman30/esc-funnel/internal/config"
	"github.com/wolfman30/esc-funnel/internal/notify"
	"github.com/wolfman30/esc-funnel/internal/observability/metrics"
	"github.com/wolfman30/esc-funnel/internal/relay"
	"github.com/wolfman30/esc-funnel/internal/submission"
	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

// AWSLoader resolves the AWS SDK config on first use so processes that
// never touch SES or SQS need no credentials.
type AWSLoader func(ctx context.Context) (aws.Config, error)

// BuildEmailSender picks the lead e-mail provider. EMAIL_PROVIDER=auto
// prefers SendGrid, then SES, then a logging stub.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, loadAWS AWSLoader, logger *logging.Logger) (notify.EmailSender, string, error) {
	if logger == nil {
		logger = logging.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	auto := provider == "" || provider == "auto"
	useSendGrid := provider == "sendgrid" || (auto && cfg.SendGridAPIKey != "")
	useSES := provider == "ses" || (auto && cfg.SendGridAPIKey == "" && cfg.SESFromEmail != "")

	switch {
	case useSendGrid:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			return nil, "", errors.New("bootstrap: sendgrid selected but SENDGRID_API_KEY is empty")
		}
		return sender, "sendgrid", nil
	case useSES:
		if loadAWS == nil {
			return nil, "", errors.New("bootstrap: ses selected without aws config")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger), "ses", nil
	default:
		return notify.NewStubEmailSender(logger), "stub", nil
	}
}

// BuildRelay wires the ClickUp relay with its lead notifier.
func BuildRelay(cfg *appconfig.Config, tenants Tenants, sender notify.EmailSender, m *metrics.RelayMetrics, inlineNotify bool, logger *logging.Logger) (*relay.Handler, error) {
	if logger == nil {
		logger = logging.Default()
	}
	mode, err := tenant.ParseDestinationMode(cfg.RelayDestinationMode)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	client := clickup.New(clickup.Config{
		BaseURL:    cfg.ClickUpBaseURL,
		Token:      cfg.ClickUpAPIToken,
		Timeout:    cfg.ClickUpAttemptTimeout(),
		MaxRetries: cfg.ClickUpMaxRetries,
		Backoff:    cfg.ClickUpRetryBackoff(),
		Logger:     logger,
	})
	if !client.HasDefaultToken() {
		logger.Warn("CLICKUP_API_TOKEN not set; only tenants with their own credential can receive leads")
	}

	relayCfg := relay.Config{
		Mode:          mode,
		DefaultListID: tenants.Default.Destination.ListID,
		Destinations:  tenants.Registry.Destinations(tenants.Default),
		NotifyInline:  inlineNotify,
		Logger:        logger,
	}
	if sender != nil {
		relayCfg.Notifier = notify.NewLeadNotifier(sender, tenants.Registry.Lookup, cfg.NotifyFallbackEmail, logger)
	}
	if m != nil {
		relayCfg.Metrics = m
	}
	logger.Info("relay configured", "mode", mode, "destinations", len(relayCfg.Destinations))
	return relay.NewHandler(client, relayCfg), nil
}

// BuildSubmitter points the funnel at the relay. Without RELAY_URL the relay
// is reached through PUBLIC_BASE_URL, or this process on localhost.
func BuildSubmitter(cfg *appconfig.Config, logger *logging.Logger) (*submission.Adapter, error) {
	mode, err := tenant.ParseDestinationMode(cfg.RelayDestinationMode)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return submission.New(submission.Config{
		RelayURL: RelayURL(cfg),
		Mode:     mode,
		Timeout:  cfg.SubmitDeadline(),
		Logger:   logger,
	})
}

// RelayURL returns the endpoint the funnel posts leads to.
func RelayURL(cfg *appconfig.Config) string {
	if u := strings.TrimSpace(cfg.RelayURL); u != "" {
		return u
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"); base != "" {
		return base + "/api/clickup"
	}
	return "http://localhost:" + cfg.Port + "/api/clickup"
}

// BuildAnalytics starts the analytics dispatcher. Events always go to the
// log sink and, with ANALYTICS_QUEUE_URL, to SQS as well.
func BuildAnalytics(ctx context.Context, cfg *appconfig.Config, tenants Tenants, loadAWS AWSLoader, m *metrics.FunnelMetrics, logger *logging.Logger) (*analytics.Dispatcher, error) {
	sinks := []analytics.Sink{analytics.NewLogSink(logger)}
	if queueURL := strings.TrimSpace(cfg.AnalyticsQueueURL); queueURL != "" {
		if loadAWS == nil {
			return nil, errors.New("bootstrap: analytics queue set without aws config")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		sinks = append(sinks, analytics.NewSQSSink(sqs.NewFromConfig(awsCfg), queueURL))
	}
	d := analytics.NewDispatcher(cfg.AnalyticsBuffer, logger, sinks...).WithTenants(tenants.Lookup)
	if m != nil {
		d.WithMetrics(m)
	}
	return d, nil
}
