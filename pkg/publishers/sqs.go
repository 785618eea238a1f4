package publishers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/samvad-hq/soupchef/internal/logger"
)

const fifoSuffix = ".fifo"

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// queuePublisher sends recipe events to an SQS queue. FIFO queues get one
// message group per run so a run's recipes arrive in crawl order.
type queuePublisher struct {
	id       string
	queueURL string
	fifo     bool
	client   sqsAPI
	log      logger.Logger
}

func newSQSPublisher(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	if cfg.SQS == nil {
		return nil, fmt.Errorf("publisher %q missing sqs configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.SQS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newQueuePublisher(cfg.ID, cfg.SQS.QueueURL, sqs.NewFromConfig(awsCfg), log), nil
}

func newQueuePublisher(id, queueURL string, client sqsAPI, log logger.Logger) *queuePublisher {
	return &queuePublisher{
		id:       id,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, fifoSuffix),
		client:   client,
		log:      logger.Ensure(log),
	}
}

func (q *queuePublisher) ID() string   { return q.id }
func (q *queuePublisher) Type() string { return TypeSQS }

func (q *queuePublisher) Publish(ctx context.Context, evt RecipeEvent) error {
	payload, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("encode recipe event: %w", err)
	}

	attrs := make(map[string]types.MessageAttributeValue)
	for k, v := range evt.Attributes() {
		attrs[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(q.queueURL),
		MessageBody:       aws.String(string(payload)),
		MessageAttributes: attrs,
	}
	if q.fifo {
		input.MessageGroupId = aws.String(groupID(evt))
		input.MessageDeduplicationId = aws.String(evt.DedupKey())
	}

	out, err := q.client.SendMessage(ctx, input)
	if err != nil {
		q.log.WarnObj("sqs send failed", "publisher_sqs_error", map[string]any{
			"publisher_id": q.id,
			"recipe_id":    evt.RecipeID,
			"error":        err.Error(),
		})
		return fmt.Errorf("send recipe %s to sqs: %w", evt.RecipeID, err)
	}
	q.log.DebugObj("sqs delivered recipe event", "publisher_sqs_delivery", map[string]any{
		"publisher_id": q.id,
		"recipe_id":    evt.RecipeID,
		"message_id":   aws.ToString(out.MessageId),
	})
	return nil
}

func groupID(evt RecipeEvent) string {
	if evt.RunID != "" {
		return evt.RunID
	}
	return "soupchef"
}
