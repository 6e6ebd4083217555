package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"chat-gateway/handler"
	"chat-gateway/internal/integrations/openai"
	"chat-gateway/internal/integrations/paramstore"
	"chat-gateway/internal/ratelimit"
	"chat-gateway/internal/store"
	"chat-gateway/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here; credentials read at generation time) ----
	model := envStr("OPENAI_MODEL", "gpt-4o-mini")
	paramPrefix := os.Getenv("PARAM_PREFIX")
	localAddr := os.Getenv("LOCAL_ADDR")
	expensiveMax := envInt("RATE_LIMIT_EXPENSIVE", 30)
	defaultMax := envInt("RATE_LIMIT_DEFAULT", 120)
	pollingMax := envInt("RATE_LIMIT_POLLING", 300)

	// ---- Optional Parameter Store fallback for the primary credential ----
	var primaryOpts []openai.Option
	if paramPrefix != "" {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		primaryOpts = append(primaryOpts, openai.WithParamStore(ssmClient, paramPrefix+"/openai-api-key"))
	}

	// ---- Providers (primary first, then fallback) ----
	primary, err := openai.NewClient("openai", "https://api.openai.com/v1", "OPENAI_API_KEY", primaryOpts...)
	if err != nil {
		slog.Error("failed to create primary LLM client", "err", err)
		os.Exit(1)
	}
	secondary, err := openai.NewClient("openrouter", "https://openrouter.ai/api/v1", "OPENROUTER_API_KEY")
	if err != nil {
		slog.Error("failed to create secondary LLM client", "err", err)
		os.Exit(1)
	}

	// ---- Stores (process-local, reset on restart) ----
	contexts := store.NewContexts()
	sessions := store.NewSessions()
	notifications := store.NewNotifications()
	settings := store.NewSettings(map[string]any{
		"model":       model,
		"theme":       "dark",
		"poll_ms":     1000,
		"show_system": false,
	})

	service, err := usecase.NewChatService(contexts, sessions, notifications, settings,
		[]usecase.LLMClient{primary, secondary}, model)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}
	service.Notify("info", "Gateway started", "A new gateway instance is serving requests.")

	limiter := ratelimit.NewLimiter(map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassDefault:   {Window: time.Minute, MaxRequests: defaultMax},
		ratelimit.ClassExpensive: {Window: time.Minute, MaxRequests: expensiveMax},
		ratelimit.ClassPolling:   {Window: time.Minute, MaxRequests: pollingMax},
	})

	h, err := handler.NewHandler(service, limiter)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if localAddr != "" {
		slog.Info("serving locally", "addr", localAddr, "runtime_id", service.RuntimeID())
		if err := http.ListenAndServe(localAddr, h); err != nil {
			slog.Error("local server stopped", "err", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(h.Handle)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
