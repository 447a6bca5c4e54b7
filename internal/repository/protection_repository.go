package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harborview/dms-storage-api/internal/models"
)

// ProtectionRepository persists protection rules and the immutable
// protection audit log.
type ProtectionRepository struct {
	db *sqlx.DB
}

// NewProtectionRepository constructs the repository.
func NewProtectionRepository(db *sqlx.DB) *ProtectionRepository {
	return &ProtectionRepository{db: db}
}

// FindRuleByTrigger returns the rule matching an external status value.
func (r *ProtectionRepository) FindRuleByTrigger(ctx context.Context, trigger string) (*models.ProtectionRule, error) {
	const query = `SELECT id, trigger_value, level, override_capability, created_at
FROM protection_rules WHERE trigger_value = $1`
	var rule models.ProtectionRule
	if err := r.db.GetContext(ctx, &rule, query, trigger); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules returns every configured rule.
func (r *ProtectionRepository) ListRules(ctx context.Context) ([]models.ProtectionRule, error) {
	const query = `SELECT id, trigger_value, level, override_capability, created_at
FROM protection_rules ORDER BY trigger_value ASC`
	var rules []models.ProtectionRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list protection rules: %w", err)
	}
	return rules, nil
}

// AppendLog records one protection action. Log rows are never updated.
func (r *ProtectionRepository) AppendLog(ctx context.Context, entry *models.ProtectionLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO protection_log (id, file_id, action, level, actor_id, reason, created_at)
VALUES (:id, :file_id, :action, :level, :actor_id, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append protection log: %w", err)
	}
	return nil
}

// ListLogByFile returns a file's protection history, newest first.
func (r *ProtectionRepository) ListLogByFile(ctx context.Context, fileID string) ([]models.ProtectionLogEntry, error) {
	const query = `SELECT id, file_id, action, level, actor_id, reason, created_at
FROM protection_log WHERE file_id = $1 ORDER BY created_at DESC`
	var entries []models.ProtectionLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, fileID); err != nil {
		return nil, fmt.Errorf("list protection log: %w", err)
	}
	return entries, nil
}
