package recipients

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/locktivity/aws-key-audit/internal/logger"
)

// Item attribute names.
const (
	attrRecipients = "Recipients"
	attrName       = "Name"
	attrEmail      = "Email"
)

type DynamoClient interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoDirectory reads recipients from a DynamoDB table keyed by identity.
// An item holds either a Recipients list of {Name, Email} maps or a single
// flat Name/Email pair.
type DynamoDirectory struct {
	Client    DynamoClient
	TableName string
	KeyAttr   string
}

func NewDynamoDirectory(cfg aws.Config, tableName, keyAttr string) *DynamoDirectory {
	return &DynamoDirectory{
		Client:    dynamodb.NewFromConfig(cfg),
		TableName: tableName,
		KeyAttr:   keyAttr,
	}
}

// Lookup fetches each identity's item. A failed read is logged and treated
// like a missing entry so one bad item cannot block other reminders.
func (d *DynamoDirectory) Lookup(ctx context.Context, identities []string) (map[string][]Recipient, error) {
	out := make(map[string][]Recipient)
	for _, identity := range identities {
		resp, err := d.Client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(d.TableName),
			Key: map[string]types.AttributeValue{
				d.KeyAttr: &types.AttributeValueMemberS{Value: identity},
			},
		})
		if err != nil {
			logger.Error(logger.With(ctx, logger.IdentityKey, identity), "recipient lookup failed", "table", d.TableName, "error", err)
			continue
		}
		if len(resp.Item) == 0 {
			continue
		}

		recipients, err := decodeItem(resp.Item)
		if err != nil {
			logger.Error(logger.With(ctx, logger.IdentityKey, identity), "malformed recipient item", "table", d.TableName, "error", err)
			continue
		}
		out[identity] = recipients
	}
	return out, nil
}

func decodeItem(item map[string]types.AttributeValue) ([]Recipient, error) {
	if list, ok := item[attrRecipients]; ok {
		l, ok := list.(*types.AttributeValueMemberL)
		if !ok {
			return nil, fmt.Errorf("%s is not a list", attrRecipients)
		}
		recipients := make([]Recipient, 0, len(l.Value))
		for i, v := range l.Value {
			m, ok := v.(*types.AttributeValueMemberM)
			if !ok {
				return nil, fmt.Errorf("%s[%d] is not a map", attrRecipients, i)
			}
			recipients = append(recipients, decodeRecipient(m.Value))
		}
		return recipients, nil
	}

	r := decodeRecipient(item)
	if r.Email == "" {
		return nil, fmt.Errorf("item has neither %s nor %s", attrRecipients, attrEmail)
	}
	return []Recipient{r}, nil
}

func decodeRecipient(m map[string]types.AttributeValue) Recipient {
	return Recipient{
		Name:  stringAttr(m, attrName),
		Email: stringAttr(m, attrEmail),
	}
}

func stringAttr(m map[string]types.AttributeValue, name string) string {
	if s, ok := m[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
