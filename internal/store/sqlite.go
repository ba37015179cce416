// Package store holds the binding, tenant and conversation records the router
// reads and updates, backed by SQLite or DynamoDB.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

// SQLiteStore implements domain.Store on a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Binding(ctx context.Context, authID string) (*domain.Binding, error) {
	b := domain.Binding{AuthID: authID}
	err := s.db.QueryRowContext(ctx,
		`SELECT con_id, language FROM auth_bindings WHERE auth_id = ?`, authID,
	).Scan(&b.ConversationID, &b.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get binding %s: %w", authID, err)
	}
	return &b, nil
}

func (s *SQLiteStore) Tenant(ctx context.Context, clientID string) (*domain.Tenant, error) {
	t := domain.Tenant{ClientID: clientID}
	c := &t.Credentials
	err := s.db.QueryRowContext(ctx,
		`SELECT teams_base_url, teams_client_id, teams_client_secret, teams_scope,
		        bot_business, bot_client_id, bot_chat_auth, is_translation
		 FROM tenants WHERE client_id = ?`, clientID,
	).Scan(&c.TeamsBaseURL, &c.TeamsClientID, &c.TeamsClientSecret, &c.TeamsScope,
		&c.BotBusiness, &c.BotClientID, &c.BotChatAuth, &t.Translation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", clientID, err)
	}
	return &t, nil
}

func (s *SQLiteStore) Conversation(ctx context.Context, conversationID string) (*domain.ConversationRecord, error) {
	r := domain.ConversationRecord{ConversationID: conversationID}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_email, latest_message, chat_transcript, agent_name
		 FROM conversations WHERE con_id = ?`, conversationID,
	).Scan(&r.UserEmail, &r.LatestMessage, &r.ChatTranscript, &r.AgentName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", conversationID, err)
	}
	return &r, nil
}

func (s *SQLiteStore) SetTranscript(ctx context.Context, conversationID, transcript string) error {
	return s.updateConversation(ctx, conversationID, "chat_transcript", transcript)
}

func (s *SQLiteStore) SetAgentName(ctx context.Context, conversationID, agentName string) error {
	return s.updateConversation(ctx, conversationID, "agent_name", agentName)
}

// updateConversation sets one column. column is always a constant from this file.
func (s *SQLiteStore) updateConversation(ctx context.Context, conversationID, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET `+column+` = ?, updated_at = CURRENT_TIMESTAMP WHERE con_id = ?`,
		value, conversationID,
	)
	if err != nil {
		return fmt.Errorf("update %s of %s: %w", column, conversationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s of %s: %w", column, conversationID, err)
	}
	if n == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) PutTenant(ctx context.Context, t domain.Tenant) error {
	c := t.Credentials
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tenants (client_id, teams_base_url, teams_client_id, teams_client_secret,
		   teams_scope, bot_business, bot_client_id, bot_chat_auth, is_translation, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		t.ClientID, c.TeamsBaseURL, c.TeamsClientID, c.TeamsClientSecret,
		c.TeamsScope, c.BotBusiness, c.BotClientID, c.BotChatAuth, t.Translation,
	)
	if err != nil {
		return fmt.Errorf("put tenant %s: %w", t.ClientID, err)
	}
	return nil
}

func (s *SQLiteStore) PutBinding(ctx context.Context, b domain.Binding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO auth_bindings (auth_id, con_id, language, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		b.AuthID, b.ConversationID, b.Language,
	)
	if err != nil {
		return fmt.Errorf("put binding %s: %w", b.AuthID, err)
	}
	return nil
}

func (s *SQLiteStore) PutConversation(ctx context.Context, r domain.ConversationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversations (con_id, user_email, latest_message, chat_transcript, agent_name, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		r.ConversationID, r.UserEmail, r.LatestMessage, r.ChatTranscript, r.AgentName,
	)
	if err != nil {
		return fmt.Errorf("put conversation %s: %w", r.ConversationID, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
