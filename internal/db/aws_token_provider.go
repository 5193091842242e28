package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// awsTokenLifetime is the validity of an RDS IAM authentication token.
const awsTokenLifetime = 15 * time.Minute

type (
	awsCredentialsLoader func(ctx context.Context, region string) (aws.CredentialsProvider, error)
	awsTokenBuilder      func(ctx context.Context, endpoint, region, dbUser string, creds aws.CredentialsProvider, optFns ...func(*auth.BuildAuthTokenOptions)) (string, error)
)

// AWSIAMTokenProvider signs RDS IAM authentication tokens for one endpoint
// and user. The AWS credential chain is resolved on first use and reused,
// so a reconnect only pays for the local signing step.
type AWSIAMTokenProvider struct {
	endpoint string // host:port
	region   string
	username string

	loadCredentials awsCredentialsLoader
	buildToken      awsTokenBuilder
	now             func() time.Time

	mu    sync.Mutex
	creds aws.CredentialsProvider
}

// NewAWSIAMTokenProvider creates a token provider for AWS RDS IAM authentication.
// endpoint is the RDS endpoint in host:port format.
func NewAWSIAMTokenProvider(endpoint, region, username string) (*AWSIAMTokenProvider, error) {
	switch {
	case endpoint == "":
		return nil, fmt.Errorf("AWS IAM auth requires endpoint (host:port): %w", reconnect.ErrInvalidConfig)
	case region == "":
		return nil, fmt.Errorf("AWS IAM auth requires region (use --aws-region or $AWS_REGION): %w", reconnect.ErrInvalidConfig)
	case username == "":
		return nil, fmt.Errorf("AWS IAM auth requires a database username in the DSN: %w", reconnect.ErrInvalidConfig)
	}

	return &AWSIAMTokenProvider{
		endpoint:        endpoint,
		region:          region,
		username:        username,
		loadCredentials: loadAWSCredentials,
		buildToken:      auth.BuildAuthToken,
		now:             time.Now,
	}, nil
}

func loadAWSCredentials(ctx context.Context, region string) (aws.CredentialsProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return cfg.Credentials, nil
}

// GetToken signs a new token, valid for awsTokenLifetime.
func (p *AWSIAMTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	creds, err := p.credentials(ctx)
	if err != nil {
		return "", time.Time{}, tokenFailure(p, fmt.Errorf("load AWS credentials: %w", err))
	}

	issued := p.now()
	token, err := p.buildToken(ctx, p.endpoint, p.region, p.username, creds)
	if err != nil {
		return "", time.Time{}, tokenFailure(p, fmt.Errorf("build RDS auth token: %w", err))
	}
	return token, issued.Add(awsTokenLifetime), nil
}

func (p *AWSIAMTokenProvider) credentials(ctx context.Context) (aws.CredentialsProvider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.creds != nil {
		return p.creds, nil
	}
	creds, err := p.loadCredentials(ctx, p.region)
	if err != nil {
		return nil, err
	}
	p.creds = creds
	return creds, nil
}

func (p *AWSIAMTokenProvider) String() string {
	return fmt.Sprintf("AWSIAMTokenProvider(endpoint=%s, region=%s, user=%s)", p.endpoint, p.region, p.username)
}
