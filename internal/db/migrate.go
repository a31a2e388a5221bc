package db

import (
	"fmt"

	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

func (s *PostgresService) AutoMigrateAll() error {
	if err := s.db.AutoMigrate(
		&types.Document{},
		&types.Conversation{},
		&types.Message{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
