package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoTables names the three tables the router uses.
type DynamoTables struct {
	Conversations string // keyed by con_id
	Bindings      string // keyed by auth_id
	Tenants       string // keyed by client_id
}

// DynamoStore implements domain.Store on DynamoDB.
type DynamoStore struct {
	api    dynamoAPI
	tables DynamoTables
	logger *slog.Logger
}

// DynamoConfig holds configuration for DynamoStore.
type DynamoConfig struct {
	AWS      aws.Config
	Endpoint string // optional custom endpoint (DynamoDB Local, LocalStack)
	Tables   DynamoTables
	Logger   *slog.Logger
}

func NewDynamoStore(cfg DynamoConfig) *DynamoStore {
	client := dynamodb.NewFromConfig(cfg.AWS, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &DynamoStore{api: client, tables: cfg.Tables, logger: cfg.Logger}
}

type bindingItem struct {
	AuthID   string `dynamodbav:"auth_id"`
	ConID    string `dynamodbav:"con_id"`
	Language string `dynamodbav:"language,omitempty"`
}

type tenantItem struct {
	ClientID          string   `dynamodbav:"client_id"`
	TeamsBaseURL      string   `dynamodbav:"teams_base_url"`
	TeamsClientID     string   `dynamodbav:"teams_client_id"`
	TeamsClientSecret string   `dynamodbav:"teams_client_secret"`
	TeamsScope        string   `dynamodbav:"teams_scope"`
	BotBusiness       string   `dynamodbav:"bot_business"`
	BotClientID       string   `dynamodbav:"bot_client_id"`
	BotChatAuth       string   `dynamodbav:"bot_chat_auth"`
	Translation       flexBool `dynamodbav:"is_translation"`
}

type conversationItem struct {
	ConID          string `dynamodbav:"con_id"`
	UserEmail      string `dynamodbav:"user_email"`
	LatestMessage  string `dynamodbav:"latest_message"`
	ChatTranscript string `dynamodbav:"chat_transcript"`
	AgentName      string `dynamodbav:"agent_name"`
}

// flexBool reads the translation flag, which is stored as a BOOL, a string
// ("true", "1", "yes") or a number depending on who wrote the item.
type flexBool bool

func (f *flexBool) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberBOOL:
		*f = flexBool(v.Value)
	case *types.AttributeValueMemberS:
		switch strings.ToLower(strings.TrimSpace(v.Value)) {
		case "true", "1", "yes":
			*f = true
		default:
			*f = false
		}
	case *types.AttributeValueMemberN:
		n, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return fmt.Errorf("is_translation: %w", err)
		}
		*f = n != 0
	default:
		*f = false
	}
	return nil
}

func (f flexBool) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberBOOL{Value: bool(f)}, nil
}

func (s *DynamoStore) get(ctx context.Context, table, keyName, key string, out any) (bool, error) {
	resp, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       map[string]types.AttributeValue{keyName: &types.AttributeValueMemberS{Value: key}},
	})
	if err != nil {
		return false, fmt.Errorf("get %s from %s: %w", key, table, err)
	}
	if len(resp.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(resp.Item, out); err != nil {
		return false, fmt.Errorf("decode %s from %s: %w", key, table, err)
	}
	return true, nil
}

func (s *DynamoStore) Binding(ctx context.Context, authID string) (*domain.Binding, error) {
	var item bindingItem
	found, err := s.get(ctx, s.tables.Bindings, "auth_id", authID, &item)
	if err != nil || !found {
		return nil, err
	}
	return &domain.Binding{AuthID: authID, ConversationID: item.ConID, Language: item.Language}, nil
}

func (s *DynamoStore) Tenant(ctx context.Context, clientID string) (*domain.Tenant, error) {
	var item tenantItem
	found, err := s.get(ctx, s.tables.Tenants, "client_id", clientID, &item)
	if err != nil || !found {
		return nil, err
	}
	return &domain.Tenant{
		ClientID: clientID,
		Credentials: domain.CredentialBundle{
			TeamsBaseURL:      item.TeamsBaseURL,
			TeamsClientID:     item.TeamsClientID,
			TeamsClientSecret: item.TeamsClientSecret,
			TeamsScope:        item.TeamsScope,
			BotBusiness:       item.BotBusiness,
			BotClientID:       item.BotClientID,
			BotChatAuth:       item.BotChatAuth,
		},
		Translation: bool(item.Translation),
	}, nil
}

func (s *DynamoStore) Conversation(ctx context.Context, conversationID string) (*domain.ConversationRecord, error) {
	var item conversationItem
	found, err := s.get(ctx, s.tables.Conversations, "con_id", conversationID, &item)
	if err != nil || !found {
		return nil, err
	}
	return &domain.ConversationRecord{
		ConversationID: conversationID,
		UserEmail:      item.UserEmail,
		LatestMessage:  item.LatestMessage,
		ChatTranscript: item.ChatTranscript,
		AgentName:      item.AgentName,
	}, nil
}

func (s *DynamoStore) SetTranscript(ctx context.Context, conversationID, transcript string) error {
	return s.setAttr(ctx, conversationID, "set chat_transcript=:i", ":i", transcript)
}

func (s *DynamoStore) SetAgentName(ctx context.Context, conversationID, agentName string) error {
	return s.setAttr(ctx, conversationID, "set agent_name=:a", ":a", agentName)
}

func (s *DynamoStore) setAttr(ctx context.Context, conversationID, expr, placeholder, value string) error {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Conversations),
		Key:                       map[string]types.AttributeValue{"con_id": &types.AttributeValueMemberS{Value: conversationID}},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(con_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{placeholder: &types.AttributeValueMemberS{Value: value}},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update conversation %s: %w", conversationID, err)
	}
	return nil
}

func (s *DynamoStore) put(ctx context.Context, table string, in any) error {
	item, err := attributevalue.MarshalMap(in)
	if err != nil {
		return fmt.Errorf("encode item for %s: %w", table, err)
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(table), Item: item}); err != nil {
		return fmt.Errorf("put item into %s: %w", table, err)
	}
	return nil
}

func (s *DynamoStore) PutTenant(ctx context.Context, t domain.Tenant) error {
	c := t.Credentials
	return s.put(ctx, s.tables.Tenants, tenantItem{
		ClientID:          t.ClientID,
		TeamsBaseURL:      c.TeamsBaseURL,
		TeamsClientID:     c.TeamsClientID,
		TeamsClientSecret: c.TeamsClientSecret,
		TeamsScope:        c.TeamsScope,
		BotBusiness:       c.BotBusiness,
		BotClientID:       c.BotClientID,
		BotChatAuth:       c.BotChatAuth,
		Translation:       flexBool(t.Translation),
	})
}

func (s *DynamoStore) PutBinding(ctx context.Context, b domain.Binding) error {
	return s.put(ctx, s.tables.Bindings, bindingItem{AuthID: b.AuthID, ConID: b.ConversationID, Language: b.Language})
}

func (s *DynamoStore) PutConversation(ctx context.Context, r domain.ConversationRecord) error {
	return s.put(ctx, s.tables.Conversations, conversationItem{
		ConID:          r.ConversationID,
		UserEmail:      r.UserEmail,
		LatestMessage:  r.LatestMessage,
		ChatTranscript: r.ChatTranscript,
		AgentName:      r.AgentName,
	})
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *DynamoStore) Close() error { return nil }
