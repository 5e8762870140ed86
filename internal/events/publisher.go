// Package events publishes payment settlement events for downstream accounting.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

const (
	TypePaymentSettled = "payment.settled"
	TypePaymentFailed  = "payment.failed"
)

// Event describes the outcome of one payment.
type Event struct {
	Type              string    `json:"type"`
	GrantID           string    `json:"grantId,omitempty"`
	SessionID         string    `json:"sessionId,omitempty"`
	CustomerID        string    `json:"customerId,omitempty"`
	VendorID          string    `json:"vendorId,omitempty"`
	Amount            string    `json:"amount"`
	AssetCode         string    `json:"assetCode,omitempty"`
	OutgoingPaymentID string    `json:"outgoingPaymentId,omitempty"`
	FailedStep        string    `json:"failedStep,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends events to an SQS queue.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
	logger   *zap.Logger
}

func NewSQSPublisher(client SQSAPI, queueURL string, logger *zap.Logger) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL, logger: logger}
}

func (p *SQSPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	attributes := map[string]types.MessageAttributeValue{
		"EventType": {
			StringValue: aws.String(event.Type),
			DataType:    aws.String("String"),
		},
	}
	if event.GrantID != "" {
		attributes["GrantID"] = types.MessageAttributeValue{
			StringValue: aws.String(event.GrantID),
			DataType:    aws.String("String"),
		}
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attributes,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	p.logger.Debug("event published",
		zap.String("event_type", event.Type),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

// NoopPublisher drops events. Used when no queue is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
