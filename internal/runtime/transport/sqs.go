package transport

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	watermillsqs "github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/queueflow/internal/runtime/attributes"
	"github.com/drblury/queueflow/internal/runtime/config"
	"github.com/drblury/queueflow/internal/runtime/logging"
)

// SQSAPI is the subset of the SQS client used by SQS.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *amazonsqs.SendMessageInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *amazonsqs.ReceiveMessageInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *amazonsqs.DeleteMessageInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.DeleteMessageOutput, error)
}

var (
	AWSDefaultConfigLoader = awsconfig.LoadDefaultConfig
	SQSClientFactory       = func(cfg aws.Config, optFns ...func(*amazonsqs.Options)) SQSAPI {
		return amazonsqs.NewFromConfig(cfg, optFns...)
	}
)

// SQS is the Amazon SQS backed Transport.
type SQS struct {
	client SQSAPI
}

// NewSQSFromClient wraps an existing client.
func NewSQSFromClient(client SQSAPI) *SQS {
	return &SQS{client: client}
}

// NewSQS builds an SQS client from endpoint settings. Loading the AWS config
// resolves credentials lazily, so no network call happens here.
func NewSQS(ctx context.Context, conf config.TransportConfig, logger logging.ServiceLogger) (*SQS, error) {
	cfg, err := createAWSConfig(ctx, conf, logger)
	if err != nil {
		return nil, err
	}

	optFns, err := endpointOverride(conf.Endpoint)
	if err != nil {
		return nil, err
	}

	logger.Debug("Created SQS client", logging.LogFields{
		"region":          cfg.Region,
		"custom_endpoint": conf.Endpoint != "",
	})
	return &SQS{client: SQSClientFactory(cfg, optFns...)}, nil
}

func createAWSConfig(ctx context.Context, conf config.TransportConfig, logger logging.ServiceLogger) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if conf.Region != "" {
		opts = append(opts, awsconfig.WithRegion(conf.Region))
	}
	if conf.AccessKeyID != "" && conf.SecretAccessKey != "" {
		logger.Debug("Using static AWS credentials from config", nil)
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(conf.AccessKeyID, conf.SecretAccessKey, conf.SessionToken)))
	}

	cfg, err := AWSDefaultConfigLoader(ctx, opts...)
	if err != nil {
		fields := logging.LogFields{}
		if conf.Region != "" {
			fields["requested_region"] = conf.Region
		}
		logger.Error("Failed to load AWS default config", err, fields)
		return aws.Config{}, err
	}
	// Ensure region is set even if the loader ignores options (e.g. in tests)
	if conf.Region != "" {
		cfg.Region = conf.Region
	}
	return cfg, nil
}

func endpointOverride(endpoint string) ([]func(*amazonsqs.Options), error) {
	if endpoint == "" {
		return nil, nil
	}
	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint: %w", err)
	}
	return []func(*amazonsqs.Options){
		amazonsqs.WithEndpointResolverV2(watermillsqs.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{URI: *parsedURL},
		}),
	}, nil
}

func staticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			SessionToken:    sessionToken,
			Source:          "queueflow",
		}, nil
	})
}

func (s *SQS) Send(ctx context.Context, in SendInput) (SendOutput, error) {
	input := &amazonsqs.SendMessageInput{
		QueueUrl:          aws.String(in.QueueURL),
		MessageBody:       aws.String(in.Body),
		MessageAttributes: attributes.ToSQS(in.Attributes),
		DelaySeconds:      in.DelaySeconds,
	}
	if in.GroupID != "" {
		input.MessageGroupId = aws.String(in.GroupID)
	}
	if in.DeduplicationID != "" {
		input.MessageDeduplicationId = aws.String(in.DeduplicationID)
	}

	out, err := s.client.SendMessage(ctx, input)
	if err != nil {
		return SendOutput{}, err
	}
	return SendOutput{MessageID: aws.ToString(out.MessageId)}, nil
}

func (s *SQS) Receive(ctx context.Context, in ReceiveInput) ([]Message, error) {
	input := &amazonsqs.ReceiveMessageInput{
		QueueUrl:              aws.String(in.QueueURL),
		MaxNumberOfMessages:   clampBatch(in.MaxMessages),
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	}
	if in.WaitTime > 0 {
		input.WaitTimeSeconds = int32(in.WaitTime.Seconds())
	}
	if in.VisibilityTimeout > 0 {
		input.VisibilityTimeout = int32(in.VisibilityTimeout.Seconds())
	}

	out, err := s.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			Attributes:    attributes.FromSQS(m.MessageAttributes),
			ReceiveCount:  receiveCount(m.Attributes),
		})
	}
	return messages, nil
}

func (s *SQS) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	_, err := s.client.DeleteMessage(ctx, &amazonsqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return err
}

func receiveCount(attrs map[string]string) int {
	n, err := strconv.Atoi(attrs[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
