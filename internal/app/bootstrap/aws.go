package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	appconfig "github.com/wolfman30/context-rot-monitor/internal/config"
)

// LoadAWSConfig is the AWSConfigLoader used by the binaries. Static keys win
// over the default credential chain only when both halves are set, and
// AWS_ENDPOINT_OVERRIDE redirects Bedrock Runtime alone.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	if cfg == nil {
		return aws.Config{}, fmt.Errorf("bootstrap: config is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsLoadOptions(cfg)...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.EndpointResolverWithOptions = bedrockEndpointResolver(endpoint, cfg.AWSRegion)
	}
	return awsCfg, nil
}

func awsLoadOptions(cfg *appconfig.Config) []func(*awsconfig.LoadOptions) error {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	keyID := strings.TrimSpace(cfg.AWSAccessKeyID)
	secret := strings.TrimSpace(cfg.AWSSecretAccessKey)
	if keyID == "" || secret == "" {
		return opts
	}
	static := credentials.NewStaticCredentialsProvider(keyID, secret, "")
	return append(opts, awsconfig.WithCredentialsProvider(static))
}

// bedrockEndpointResolver answers for Bedrock Runtime only; every other
// service reports EndpointNotFoundError so the SDK falls back to its defaults.
func bedrockEndpointResolver(url, signingRegion string) aws.EndpointResolverWithOptions {
	return aws.EndpointResolverWithOptionsFunc(func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
		if service != bedrockruntime.ServiceID {
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}
		return aws.Endpoint{URL: url, PartitionID: "aws", SigningRegion: signingRegion}, nil
	})
}
