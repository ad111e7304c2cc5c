package awsclient

import (
	"context"
	"testing"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/jobmanager/internal/config"
)

func load(t *testing.T, cfg config.AWSConfig) awsconfig.LoadOptions {
	t.Helper()
	var lo awsconfig.LoadOptions
	for _, opt := range Options(cfg) {
		require.NoError(t, opt(&lo))
	}
	return lo
}

func TestOptions_Region(t *testing.T) {
	lo := load(t, config.AWSConfig{Region: "us-east-2"})

	assert.Equal(t, "us-east-2", lo.Region)
	assert.Empty(t, lo.BaseEndpoint)
	assert.Nil(t, lo.Credentials)
}

func TestOptions_LocalEndpointWithStaticKeys(t *testing.T) {
	lo := load(t, config.AWSConfig{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test",
		SecretAccessKey: "secret",
	})

	assert.Equal(t, "http://localhost:4566", lo.BaseEndpoint)
	require.NotNil(t, lo.Credentials)

	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}
