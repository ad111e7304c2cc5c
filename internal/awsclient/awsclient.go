// Package awsclient loads the aws.Config shared by the S3 and SQS clients.
package awsclient

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.uber.org/fx"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

var Module = fx.Module("awsclient",
	fx.Provide(NewConfig),
)

// Options returns the loader options derived from cfg
func Options(cfg config.AWSConfig) []func(*awsconfig.LoadOptions) error {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.UsesStaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	return opts
}

// NewConfig loads the AWS configuration once for the process
func NewConfig(cfg *config.Config, log *slog.Logger) (aws.Config, error) {
	log = log.With(logger.Scope("aws"))

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), Options(cfg.AWS)...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("aws config loaded",
		slog.String("region", awsCfg.Region),
		slog.String("endpoint", cfg.AWS.Endpoint),
		slog.Bool("static_credentials", cfg.AWS.UsesStaticCredentials()),
	)
	return awsCfg, nil
}
