package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

func lambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda function",
		Long:  "Starts the AWS Lambda runtime loop. Each invocation payload is one chat-provider event.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(context.Background(), cfg, logger)
			if err != nil {
				return err
			}
			lambda.Start(lambdaHandler(a))
			return nil
		},
	}
}

// lambdaHandler answers 200 for every invocation, including payloads that do
// not decode, so the platform never retries. Pending tickets are flushed
// before returning since the runtime may freeze the process after.
func lambdaHandler(a *app) func(ctx context.Context, payload json.RawMessage) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, payload json.RawMessage) (events.APIGatewayProxyResponse, error) {
		var ev domain.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.Error("decode event failed", "bytes", len(payload), "err", err)
			return events.APIGatewayProxyResponse{StatusCode: 200, Body: "OK"}, nil
		}

		if err := a.router.Dispatch(ctx, ev); err != nil {
			logger.Error("dispatch failed", "user", ev.AuthID, "err", err)
		}
		if err := a.tickets.Flush(ctx); err != nil {
			logger.Warn("ticket flush incomplete", "err", err)
		}
		return events.APIGatewayProxyResponse{StatusCode: 200, Body: "OK"}, nil
	}
}
