package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/wolfman30/esc-funnel/cmd/mainconfig"
	"github.com/wolfman30/esc-funnel/internal/app/bootstrap"
	appconfig "github.com/wolfman30/esc-funnel/internal/config"
	"github.com/wolfman30/esc-funnel/internal/relay"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

type relayHandler interface {
	Handle(ctx context.Context, method string, body []byte) relay.Response
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.ForEnv(cfg.Env, cfg.LogLevel)
	ctx := context.Background()

	tenants, err := bootstrap.BuildTenants(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load tenants", "error", err)
		os.Exit(1)
	}
	sender, provider, err := bootstrap.BuildEmailSender(ctx, cfg, mainconfig.LazyAWSConfig(cfg), logger)
	if err != nil {
		logger.Error("failed to configure lead e-mail", "error", err)
		os.Exit(1)
	}
	logger.Info("lead e-mail configured", "provider", provider)

	// The sandbox freezes after each response, so e-mails go out inline.
	h, err := bootstrap.BuildRelay(cfg, tenants, sender, nil, true, logger)
	if err != nil {
		logger.Error("failed to configure relay", "error", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, h, evt)
	})
}

func handle(ctx context.Context, h relayHandler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" || path == "/_health" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	}

	switch path {
	case "", "/", "/api/clickup", "/api/clickup.php":
	default:
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound, Headers: corsHeaders()}, nil
	}

	var body []byte
	if method == http.MethodPost {
		// An undecodable body is reported by the relay as invalid JSON.
		body, _ = decodeBody(evt)
	}
	return toGatewayResponse(h.Handle(ctx, method, body))
}

func toGatewayResponse(resp relay.Response) (events.APIGatewayV2HTTPResponse, error) {
	out := events.APIGatewayV2HTTPResponse{StatusCode: resp.Status, Headers: corsHeaders()}
	if resp.Body == nil {
		return out, nil
	}
	encoded, err := json.Marshal(resp.Body)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError, Headers: corsHeaders()}, nil
	}
	out.Headers["content-type"] = "application/json; charset=utf-8"
	out.Body = string(encoded)
	return out, nil
}

func corsHeaders() map[string]string {
	hdr := http.Header{}
	relay.SetCORSHeaders(hdr)
	out := make(map[string]string, len(hdr))
	for k := range hdr {
		out[strings.ToLower(k)] = hdr.Get(k)
	}
	return out
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Body)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}
