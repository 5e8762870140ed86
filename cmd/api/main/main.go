//go:build lambda
// +build lambda

package main

import (
	"context"
	"fmt"
	"strings"

	awsclient "github.com/cyphera/grantpay/internal/client/aws"
	"github.com/cyphera/grantpay/internal/config"
	"github.com/cyphera/grantpay/internal/logger"
	"github.com/cyphera/grantpay/internal/middleware"
	"github.com/cyphera/grantpay/internal/server"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/davecgh/go-spew/spew"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title           GrantPay API
// @version         1.0
// @description     Open Payments grant orchestration for instant payments and daily-limited vendor authorizations

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

type app struct {
	proxy *ginadapter.GinLambda
}

func bootstrap(ctx context.Context) (*app, error) {
	secrets, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secrets manager: %w", err)
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger.InitLogger(cfg.Stage)

	srv, err := server.New(ctx, cfg, server.Dependencies{}, logger.Log)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	srv.InitializeRoutes(router)

	return &app{proxy: ginadapter.New(router)}, nil
}

// handle proxies one API Gateway event. The gateway request id becomes the correlation id when
// the caller did not send one.
func (a *app) handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if id := req.RequestContext.RequestID; id != "" && !hasHeader(req, middleware.CorrelationIDHeader) {
		if req.Headers == nil {
			req.Headers = map[string]string{}
		}
		req.Headers[middleware.CorrelationIDHeader] = id
		if req.MultiValueHeaders != nil {
			req.MultiValueHeaders[middleware.CorrelationIDHeader] = []string{id}
		}
	}

	if ce := logger.Log.Check(zap.DebugLevel, "Received Lambda request"); ce != nil {
		ce.Write(
			zap.String("method", req.HTTPMethod),
			zap.String("path", req.Path),
			zap.String("request_context", spew.Sdump(req.RequestContext.Stage, req.RequestContext.RequestID)),
		)
	}

	return a.proxy.ProxyWithContext(ctx, req)
}

// hasHeader matches case-insensitively since API Gateway may lowercase header names.
func hasHeader(req events.APIGatewayProxyRequest, name string) bool {
	for key := range req.Headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	for key := range req.MultiValueHeaders {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

func main() {
	a, err := bootstrap(context.Background())
	if err != nil {
		panic("failed to start: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	lambda.Start(a.handle)
}
