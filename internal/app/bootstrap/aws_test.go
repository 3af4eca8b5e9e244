package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	appconfig "github.com/wolfman30/context-rot-monitor/internal/config"
)

func TestLoadAWSConfigRequiresConfig(t *testing.T) {
	if _, err := LoadAWSConfig(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestLoadAWSConfigStaticKeysAndOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "eu-central-1",
		AWSAccessKeyID:      "AKIDLOCAL",
		AWSSecretAccessKey:  "local-secret",
		AWSEndpointOverride: " http://localhost:4566 ",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if awsCfg.Region != "eu-central-1" {
		t.Fatalf("region = %q", awsCfg.Region)
	}
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "AKIDLOCAL" || creds.SecretAccessKey != "local-secret" {
		t.Fatalf("credentials = %+v", creds)
	}
	ep, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(bedrockruntime.ServiceID, "eu-central-1")
	if err != nil {
		t.Fatalf("resolve bedrock: %v", err)
	}
	if ep.URL != "http://localhost:4566" || ep.SigningRegion != "eu-central-1" {
		t.Fatalf("bedrock endpoint = %+v", ep)
	}
}

func TestLoadAWSConfigWithoutOverrideKeepsDefaultResolver(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{AWSRegion: "us-east-1", AWSAccessKeyID: "only-half"}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if awsCfg.EndpointResolverWithOptions != nil {
		t.Fatalf("expected no custom resolver without an override")
	}
}

func TestBedrockEndpointResolverIgnoresOtherServices(t *testing.T) {
	resolver := bedrockEndpointResolver("http://bedrock.local", "us-west-2")

	for _, service := range []string{"S3", "DynamoDB", "STS"} {
		_, err := resolver.ResolveEndpoint(service, "us-west-2")
		var notFound *aws.EndpointNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("%s: expected EndpointNotFoundError, got %v", service, err)
		}
	}
	ep, err := resolver.ResolveEndpoint(bedrockruntime.ServiceID, "us-west-2")
	if err != nil || ep.URL != "http://bedrock.local" || ep.PartitionID != "aws" {
		t.Fatalf("bedrock endpoint = %+v (%v)", ep, err)
	}
}
