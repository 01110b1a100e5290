package database

import (
	"context"

	"invoice-dashboard-backend/apperrors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AWSClients bundles the key-value and object-storage clients. Both are safe for concurrent use
// and are built once at start-up.
type AWSClients struct {
	DynamoDB  *dynamodb.Client
	Presigner *s3.PresignClient
}

// ConnectAWS resolves credentials through the default provider chain (env, shared config, role).
func ConnectAWS(ctx context.Context, region string) (*AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, apperrors.Configuration("aws configuration could not be loaded")
	}
	return newAWSClients(cfg), nil
}

func newAWSClients(cfg aws.Config) *AWSClients {
	return &AWSClients{
		DynamoDB:  dynamodb.NewFromConfig(cfg),
		Presigner: s3.NewPresignClient(s3.NewFromConfig(cfg)),
	}
}
