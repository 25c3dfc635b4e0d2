package main

import (
	"context"
	"encoding/base64"
	"fmt"

	"statementvault/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kelseyhightower/envconfig"
)

func loadConfig() (*types.Config, error) {
	c := new(types.Config)
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("set DATABASE_URL")
	}

	if c.JWTSecret == "" && c.JWKSURL == "" {
		return nil, fmt.Errorf("set JWT_SECRET or JWKS_URL")
	}

	if err := checkCookieKey("COOKIE_HASH_KEY", c.CookieHashKey, 32, 64); err != nil {
		return nil, err
	}
	if err := checkCookieKey("COOKIE_BLOCK_KEY", c.CookieBlockKey, 16, 24, 32); err != nil {
		return nil, err
	}

	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}

	if c.DownloadLinkMinutes <= 0 {
		c.DownloadLinkMinutes = 15
	}

	if c.MaxActiveDownloadLinks <= 0 {
		c.MaxActiveDownloadLinks = 5
	}

	return c, nil
}

// checkCookieKey requires the variable to be set and to decode to one of the
// lengths securecookie accepts, so a bad key fails at startup rather than at
// the first login.
func checkCookieKey(name, value string, sizes ...int) error {
	if value == "" {
		return fmt.Errorf("set %s (base64, decoding to %v bytes)", name, sizes)
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return fmt.Errorf("%s is not valid base64: %w", name, err)
	}

	for _, size := range sizes {
		if len(decoded) == size {
			return nil
		}
	}
	return fmt.Errorf("%s must decode to one of %v bytes, got %d", name, sizes, len(decoded))
}

func newS3Client(ctx context.Context, c *types.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.S3Region),
	}

	if c.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.S3AccessKeyID, c.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO and other S3-compatible services need an endpoint override
		// and path-style addressing.
		if c.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(c.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
