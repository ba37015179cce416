package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

// Seed is a set of records to load into a store, usually read from YAML.
type Seed struct {
	Tenants       []domain.Tenant             `yaml:"tenants"`
	Bindings      []domain.Binding            `yaml:"bindings"`
	Conversations []domain.ConversationRecord `yaml:"conversations"`
}

// Seeder is implemented by stores that accept direct writes.
type Seeder interface {
	PutTenant(ctx context.Context, t domain.Tenant) error
	PutBinding(ctx context.Context, b domain.Binding) error
	PutConversation(ctx context.Context, r domain.ConversationRecord) error
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// Apply writes every record of the seed and returns how many were written.
func (seed *Seed) Apply(ctx context.Context, s Seeder) (int, error) {
	n := 0
	for _, t := range seed.Tenants {
		if t.ClientID == "" {
			return n, fmt.Errorf("tenant %d: client_id is required", n)
		}
		if err := s.PutTenant(ctx, t); err != nil {
			return n, err
		}
		n++
	}
	for _, b := range seed.Bindings {
		if b.AuthID == "" || b.ConversationID == "" {
			return n, fmt.Errorf("binding %q: auth_id and con_id are required", b.AuthID)
		}
		if err := s.PutBinding(ctx, b); err != nil {
			return n, err
		}
		n++
	}
	for _, r := range seed.Conversations {
		if r.ConversationID == "" {
			return n, fmt.Errorf("conversation: con_id is required")
		}
		if err := s.PutConversation(ctx, r); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
