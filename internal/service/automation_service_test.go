package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	"github.com/harborview/dms-storage-api/pkg/config"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

type automationStoreStub struct {
	usage []models.FileUsage
	log   []models.AutomationLogEntry
}

func (a *automationStoreStub) AppendLog(ctx context.Context, entry *models.AutomationLogEntry) error {
	a.log = append(a.log, *entry)
	return nil
}

func (a *automationStoreStub) ListLog(ctx context.Context, limit int) ([]models.AutomationLogEntry, error) {
	if limit > len(a.log) {
		limit = len(a.log)
	}
	return a.log[:limit], nil
}

func (a *automationStoreStub) ListFileUsage(ctx context.Context, limit int) ([]models.FileUsage, error) {
	return a.usage, nil
}

type usageOverlayerStub struct {
	calls int
}

func (u *usageOverlayerStub) Overlay(ctx context.Context, usage []models.FileUsage) {
	u.calls++
}

type scheduledMove struct {
	fileID    string
	versionID string
	from      *models.Tier
	to        models.Tier
	priority  int
	reason    string
}

type automationEnqueuerStub struct {
	moves []scheduledMove
}

func (e *automationEnqueuerStub) EnqueueSync(ctx context.Context, fileID, versionID string, fromTier *models.Tier, toTier models.Tier, priority int, reason string) error {
	e.moves = append(e.moves, scheduledMove{fileID: fileID, versionID: versionID, from: fromTier, to: toTier, priority: priority, reason: reason})
	return nil
}

type automationLocationReaderStub struct {
	byVersion map[string][]models.Location
}

func (l *automationLocationReaderStub) ListByVersion(ctx context.Context, versionID string) ([]models.Location, error) {
	return l.byVersion[versionID], nil
}

type automationVersionReaderStub struct {
	current map[string]*models.Version
}

func (v *automationVersionReaderStub) GetCurrent(ctx context.Context, fileID string) (*models.Version, error) {
	version, ok := v.current[fileID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *version
	return &copy, nil
}

func newAutomationFixture(cfg config.AutomationConfig, usage ...models.FileUsage) (*AutomationService, *automationStoreStub, *automationEnqueuerStub) {
	store := &automationStoreStub{usage: usage}
	queue := &automationEnqueuerStub{}
	svc := NewAutomationService(store, &usageOverlayerStub{}, queue, &automationLocationReaderStub{}, &automationVersionReaderStub{}, cfg, nil)
	return svc, store, queue
}

func daysAgo(n int) *time.Time {
	t := time.Now().UTC().Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func TestMatchRuleBounds(t *testing.T) {
	rules := []models.PresetRule{
		{Reason: "hot_public_file", MinAccess: 25, RequirePublic: true, TargetTier: models.TierCDN},
		{Reason: "hot_file", MinAccess: 25, TargetTier: models.TierCloud},
		{Reason: "cold_file", MaxAccess: 5, MinIdleDays: 60, TargetTier: models.TierBackup},
	}
	now := time.Now().UTC()

	cases := []struct {
		name   string
		usage  models.FileUsage
		reason string
	}{
		{
			name:   "hot public file promotes to cdn",
			usage:  models.FileUsage{CurrentTier: models.TierCloud, IsPublic: true, AccessCount: 30, LastAccessedAt: daysAgo(1)},
			reason: "hot_public_file",
		},
		{
			name:   "hot private file promotes to cloud not cdn",
			usage:  models.FileUsage{CurrentTier: models.TierCache, AccessCount: 30, LastAccessedAt: daysAgo(1)},
			reason: "hot_file",
		},
		{
			name:   "cold file demotes to backup",
			usage:  models.FileUsage{CurrentTier: models.TierCloud, AccessCount: 2, LastAccessedAt: daysAgo(90)},
			reason: "cold_file",
		},
		{
			name:   "never accessed file counts as idle",
			usage:  models.FileUsage{CurrentTier: models.TierCloud, AccessCount: 0},
			reason: "cold_file",
		},
		{
			name:  "recently idle cold file stays put",
			usage: models.FileUsage{CurrentTier: models.TierCloud, AccessCount: 2, LastAccessedAt: daysAgo(10)},
		},
		{
			name:  "already in target tier",
			usage: models.FileUsage{CurrentTier: models.TierBackup, AccessCount: 0, LastAccessedAt: daysAgo(90)},
		},
		{
			name:  "warm file matches nothing",
			usage: models.FileUsage{CurrentTier: models.TierCloud, AccessCount: 10, LastAccessedAt: daysAgo(1)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := matchRule(rules, &tc.usage, now)
			if tc.reason == "" {
				require.Nil(t, rule)
				return
			}
			require.NotNil(t, rule)
			require.Equal(t, tc.reason, rule.Reason)
		})
	}
}

func TestMatchRuleFirstMatchWins(t *testing.T) {
	rules := []models.PresetRule{
		{Reason: "first", MinAccess: 10, TargetTier: models.TierCache},
		{Reason: "second", MinAccess: 10, TargetTier: models.TierCDN},
	}
	usage := models.FileUsage{CurrentTier: models.TierCloud, IsPublic: true, AccessCount: 50}

	rule := matchRule(rules, &usage, time.Now().UTC())
	require.NotNil(t, rule)
	require.Equal(t, "first", rule.Reason)
}

func TestAutomationRunDisabled(t *testing.T) {
	svc, _, queue := newAutomationFixture(
		config.AutomationConfig{Enabled: false, ActivePreset: "balanced"},
		models.FileUsage{FileID: "file-1", VersionID: "ver-1", CurrentTier: models.TierCloud, AccessCount: 100, IsPublic: true},
	)

	moves, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, moves)
	require.Empty(t, queue.moves)
}

func TestAutomationRunEnqueuesMoves(t *testing.T) {
	svc, store, queue := newAutomationFixture(
		config.AutomationConfig{Enabled: true, ActivePreset: "balanced"},
		models.FileUsage{FileID: "hot", VersionID: "ver-hot", CurrentTier: models.TierCloud, IsPublic: true, AccessCount: 100, LastAccessedAt: daysAgo(1)},
		models.FileUsage{FileID: "cold", VersionID: "ver-cold", CurrentTier: models.TierCloud, AccessCount: 1, LastAccessedAt: daysAgo(120)},
		models.FileUsage{FileID: "warm", VersionID: "ver-warm", CurrentTier: models.TierCloud, AccessCount: 10, LastAccessedAt: daysAgo(1)},
	)

	moves, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, moves)
	require.Len(t, queue.moves, 2)

	require.Equal(t, "hot", queue.moves[0].fileID)
	require.Equal(t, models.TierCDN, queue.moves[0].to)
	require.NotNil(t, queue.moves[0].from)
	require.Equal(t, models.TierCloud, *queue.moves[0].from)
	require.Equal(t, 3, queue.moves[0].priority)
	require.Equal(t, "hot_public_file", queue.moves[0].reason)

	require.Equal(t, "cold", queue.moves[1].fileID)
	require.Equal(t, models.TierBackup, queue.moves[1].to)

	require.Len(t, store.log, 2)
	require.Equal(t, models.PresetBalanced, store.log[0].Preset)
}

func TestAutomationRunBalancedMovesHotCacheFileToCloud(t *testing.T) {
	svc, _, queue := newAutomationFixture(
		config.AutomationConfig{Enabled: true, ActivePreset: "balanced"},
		models.FileUsage{FileID: "hot", VersionID: "ver-hot", CurrentTier: models.TierCache, AccessCount: 30, LastAccessedAt: daysAgo(1)},
	)

	moves, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moves)
	require.Len(t, queue.moves, 1)
	require.Equal(t, models.TierCloud, queue.moves[0].to)
	require.NotNil(t, queue.moves[0].from)
	require.Equal(t, models.TierCache, *queue.moves[0].from)
	require.Equal(t, "hot_file", queue.moves[0].reason)
}

func TestAutomationSetActivePreset(t *testing.T) {
	svc, _, _ := newAutomationFixture(config.AutomationConfig{ActivePreset: "balanced"})

	err := svc.SetActivePreset(dto.SetPresetRequest{Preset: "shiny"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	// Custom cannot be activated before rules exist.
	err = svc.SetActivePreset(dto.SetPresetRequest{Preset: "custom"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	err = svc.SetCustomRules(dto.CustomPresetRequest{Rules: []dto.PresetRuleRequest{
		{Reason: "archive_everything", MinIdleDays: 1, TargetTier: "backup"},
	}})
	require.NoError(t, err)

	err = svc.SetActivePreset(dto.SetPresetRequest{Preset: "custom"})
	require.NoError(t, err)
	active := svc.ActivePreset()
	require.Equal(t, models.PresetCustom, active.Name)
	require.Len(t, active.Rules, 1)
	require.Equal(t, models.TierBackup, active.Rules[0].TargetTier)
}

func TestAutomationSetCustomRulesRejectsBadTier(t *testing.T) {
	svc, _, _ := newAutomationFixture(config.AutomationConfig{})

	err := svc.SetCustomRules(dto.CustomPresetRequest{Rules: []dto.PresetRuleRequest{
		{Reason: "bad", TargetTier: "tape"},
	}})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAutomationPresetsListsCustomLast(t *testing.T) {
	svc, _, _ := newAutomationFixture(config.AutomationConfig{})

	presets := svc.Presets()
	require.Len(t, presets, 5)
	require.Equal(t, models.PresetBudgetConscious, presets[0].Name)
	require.Equal(t, models.PresetCustom, presets[4].Name)
	require.Empty(t, presets[4].Rules)
}

func TestAutomationMoveFile(t *testing.T) {
	store := &automationStoreStub{}
	queue := &automationEnqueuerStub{}
	versions := &automationVersionReaderStub{current: map[string]*models.Version{
		"file-1": {ID: "ver-1", FileID: "file-1", Number: 1, IsCurrent: true},
	}}
	locations := &automationLocationReaderStub{byVersion: map[string][]models.Location{
		"ver-1": {
			{VersionID: "ver-1", Tier: models.TierCloud, SyncStatus: models.SyncStatusSynced},
			{VersionID: "ver-1", Tier: models.TierBackup, SyncStatus: models.SyncStatusPending},
		},
	}}
	svc := NewAutomationService(store, &usageOverlayerStub{}, queue, locations, versions, config.AutomationConfig{ActivePreset: "balanced"}, nil)

	err := svc.MoveFile(context.Background(), "file-1", dto.MoveFileRequest{ToTier: "backup"})
	require.NoError(t, err)
	require.Len(t, queue.moves, 1)
	require.Equal(t, "ver-1", queue.moves[0].versionID)
	require.NotNil(t, queue.moves[0].from)
	require.Equal(t, models.TierCloud, *queue.moves[0].from)
	require.Equal(t, models.TierBackup, queue.moves[0].to)
	require.Equal(t, 5, queue.moves[0].priority)
	require.Equal(t, "manual_move", queue.moves[0].reason)
	require.Len(t, store.log, 1)
}

func TestAutomationMoveFileSameTierConflicts(t *testing.T) {
	versions := &automationVersionReaderStub{current: map[string]*models.Version{
		"file-1": {ID: "ver-1", FileID: "file-1"},
	}}
	locations := &automationLocationReaderStub{byVersion: map[string][]models.Location{
		"ver-1": {{VersionID: "ver-1", Tier: models.TierCloud, SyncStatus: models.SyncStatusSynced}},
	}}
	svc := NewAutomationService(&automationStoreStub{}, &usageOverlayerStub{}, &automationEnqueuerStub{}, locations, versions, config.AutomationConfig{}, nil)

	err := svc.MoveFile(context.Background(), "file-1", dto.MoveFileRequest{ToTier: "cloud"})
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAutomationMoveFileUnknownTarget(t *testing.T) {
	svc, _, _ := newAutomationFixture(config.AutomationConfig{})

	err := svc.MoveFile(context.Background(), "file-1", dto.MoveFileRequest{ToTier: "tape"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAutomationMoveFileNoCurrentVersion(t *testing.T) {
	svc, _, _ := newAutomationFixture(config.AutomationConfig{})

	err := svc.MoveFile(context.Background(), "file-404", dto.MoveFileRequest{ToTier: "backup"})
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
