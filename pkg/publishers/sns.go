package publishers

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/samvad-hq/soupchef/internal/logger"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// topicPublisher fans recipe events out through an SNS topic. The subject
// carries the recipe title for email subscriptions.
type topicPublisher struct {
	id       string
	topicARN string
	fifo     bool
	client   snsAPI
	log      logger.Logger
}

// SNS subjects are printable ASCII, shorter than 100 characters.
const maxSubjectLen = 99

var asciiSubject = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII || unicode.IsControl(r) })),
)

func newSNSPublisher(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("publisher %q missing sns configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.SNS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newTopicPublisher(cfg.ID, cfg.SNS.TopicARN, sns.NewFromConfig(awsCfg), log), nil
}

func newTopicPublisher(id, topicARN string, client snsAPI, log logger.Logger) *topicPublisher {
	return &topicPublisher{
		id:       id,
		topicARN: topicARN,
		fifo:     strings.HasSuffix(topicARN, fifoSuffix),
		client:   client,
		log:      logger.Ensure(log),
	}
}

func (t *topicPublisher) ID() string   { return t.id }
func (t *topicPublisher) Type() string { return TypeSNS }

func (t *topicPublisher) Publish(ctx context.Context, evt RecipeEvent) error {
	payload, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("encode recipe event: %w", err)
	}

	attrs := make(map[string]types.MessageAttributeValue)
	for k, v := range evt.Attributes() {
		attrs[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	input := &sns.PublishInput{
		TopicArn:          aws.String(t.topicARN),
		Message:           aws.String(string(payload)),
		MessageAttributes: attrs,
	}
	if subject := subjectFor(evt); subject != "" {
		input.Subject = aws.String(subject)
	}
	if t.fifo {
		input.MessageGroupId = aws.String(groupID(evt))
		input.MessageDeduplicationId = aws.String(evt.DedupKey())
	}

	out, err := t.client.Publish(ctx, input)
	if err != nil {
		t.log.WarnObj("sns publish failed", "publisher_sns_error", map[string]any{
			"publisher_id": t.id,
			"recipe_id":    evt.RecipeID,
			"error":        err.Error(),
		})
		return fmt.Errorf("publish recipe %s to sns: %w", evt.RecipeID, err)
	}
	t.log.DebugObj("sns delivered recipe event", "publisher_sns_delivery", map[string]any{
		"publisher_id": t.id,
		"recipe_id":    evt.RecipeID,
		"message_id":   aws.ToString(out.MessageId),
	})
	return nil
}

func subjectFor(evt RecipeEvent) string {
	title := strings.NewReplacer("ß", "ss", "Ä", "Ae", "Ö", "Oe", "Ü", "Ue", "ä", "ae", "ö", "oe", "ü", "ue").Replace(evt.Title)
	title, _, err := transform.String(asciiSubject, title)
	if err != nil {
		return ""
	}
	title = strings.Join(strings.Fields(title), " ")
	if len(title) > maxSubjectLen {
		title = strings.TrimSpace(title[:maxSubjectLen])
	}
	return title
}
