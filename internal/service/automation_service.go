package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	"github.com/harborview/dms-storage-api/pkg/config"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

// builtinPresets are the shipped reclassification policies. Rules are
// evaluated top to bottom; a zero MinAccess/MaxAccess/MinIdleDays means
// that bound is not checked.
var builtinPresets = map[models.PresetName][]models.PresetRule{
	models.PresetBudgetConscious: {
		{Reason: "cold_file", MaxAccess: 5, MinIdleDays: 30, TargetTier: models.TierBackup},
		{Reason: "cooling_file", MaxAccess: 10, MinIdleDays: 7, TargetTier: models.TierCloud},
		{Reason: "hot_public_file", MinAccess: 100, RequirePublic: true, TargetTier: models.TierCDN},
	},
	models.PresetPerformanceFirst: {
		{Reason: "hot_public_file", MinAccess: 10, RequirePublic: true, TargetTier: models.TierCDN},
		{Reason: "hot_file", MinAccess: 10, TargetTier: models.TierCache},
		{Reason: "cold_file", MaxAccess: 1, MinIdleDays: 90, TargetTier: models.TierBackup},
	},
	models.PresetBalanced: {
		{Reason: "hot_public_file", MinAccess: 25, RequirePublic: true, TargetTier: models.TierCDN},
		{Reason: "hot_file", MinAccess: 25, TargetTier: models.TierCloud},
		{Reason: "cold_file", MaxAccess: 5, MinIdleDays: 60, TargetTier: models.TierBackup},
	},
	models.PresetArchiveMode: {
		{Reason: "archived", MinIdleDays: 1, TargetTier: models.TierBackup},
	},
}

type automationStore interface {
	AppendLog(ctx context.Context, entry *models.AutomationLogEntry) error
	ListLog(ctx context.Context, limit int) ([]models.AutomationLogEntry, error)
	ListFileUsage(ctx context.Context, limit int) ([]models.FileUsage, error)
}

type usageOverlayer interface {
	Overlay(ctx context.Context, usage []models.FileUsage)
}

type automationEnqueuer interface {
	EnqueueSync(ctx context.Context, fileID, versionID string, fromTier *models.Tier, toTier models.Tier, priority int, reason string) error
}

type automationLocationReader interface {
	ListByVersion(ctx context.Context, versionID string) ([]models.Location, error)
}

type automationVersionReader interface {
	GetCurrent(ctx context.Context, fileID string) (*models.Version, error)
}

// AutomationService scans file usage and reclassifies files across tiers
// according to the active preset.
type AutomationService struct {
	repo      automationStore
	usage     usageOverlayer
	queue     automationEnqueuer
	locations automationLocationReader
	versions  automationVersionReader
	enabled   bool
	scanLimit int
	logger    *zap.Logger

	mu          sync.RWMutex
	active      models.PresetName
	customRules []models.PresetRule
}

// NewAutomationService constructs an AutomationService.
func NewAutomationService(repo automationStore, usage usageOverlayer, queue automationEnqueuer, locations automationLocationReader, versions automationVersionReader, cfg config.AutomationConfig, logger *zap.Logger) *AutomationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	active := models.PresetName(cfg.ActivePreset)
	if !active.Valid() || active == models.PresetCustom {
		active = models.PresetBalanced
	}
	scanLimit := cfg.ScanLimit
	if scanLimit <= 0 {
		scanLimit = 500
	}
	return &AutomationService{
		repo:      repo,
		usage:     usage,
		queue:     queue,
		locations: locations,
		versions:  versions,
		enabled:   cfg.Enabled,
		scanLimit: scanLimit,
		logger:    logger,
		active:    active,
	}
}

// ActivePreset returns the preset currently driving the scanner.
func (s *AutomationService) ActivePreset() models.Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presetLocked(s.active)
}

// Presets lists every available preset, the custom one last.
func (s *AutomationService) Presets() []models.Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := []models.PresetName{
		models.PresetBudgetConscious,
		models.PresetPerformanceFirst,
		models.PresetBalanced,
		models.PresetArchiveMode,
		models.PresetCustom,
	}
	presets := make([]models.Preset, 0, len(ordered))
	for _, name := range ordered {
		presets = append(presets, s.presetLocked(name))
	}
	return presets
}

// SetActivePreset switches the scanner to a named preset. Activating the
// custom preset requires rules to have been configured first.
func (s *AutomationService) SetActivePreset(req dto.SetPresetRequest) error {
	name := models.PresetName(req.Preset)
	if !name.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown preset")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == models.PresetCustom && len(s.customRules) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "custom preset has no rules")
	}
	s.active = name
	return nil
}

// SetCustomRules replaces the custom preset's rule set.
func (s *AutomationService) SetCustomRules(req dto.CustomPresetRequest) error {
	rules := make([]models.PresetRule, 0, len(req.Rules))
	for _, raw := range req.Rules {
		target := models.Tier(raw.TargetTier)
		if !target.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, "unsupported target tier")
		}
		rules = append(rules, models.PresetRule{
			Reason:        raw.Reason,
			MinAccess:     raw.MinAccess,
			MaxAccess:     raw.MaxAccess,
			MinIdleDays:   raw.MinIdleDays,
			RequirePublic: raw.RequirePublic,
			TargetTier:    target,
		})
	}
	s.mu.Lock()
	s.customRules = rules
	s.mu.Unlock()
	return nil
}

// Run executes one scan: load usage, overlay access counters, evaluate
// the active preset and enqueue the resulting moves. It returns the
// number of moves scheduled.
func (s *AutomationService) Run(ctx context.Context) (int, error) {
	if !s.enabled {
		return 0, nil
	}
	usage, err := s.repo.ListFileUsage(ctx, s.scanLimit)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load usage")
	}
	s.usage.Overlay(ctx, usage)

	preset := s.ActivePreset()
	now := time.Now().UTC()
	moves := 0
	for i := range usage {
		u := &usage[i]
		rule := matchRule(preset.Rules, u, now)
		if rule == nil {
			continue
		}
		from := u.CurrentTier
		if err := s.queue.EnqueueSync(ctx, u.FileID, u.VersionID, &from, rule.TargetTier, 3, rule.Reason); err != nil {
			s.logger.Warn("failed to enqueue automation move",
				zap.String("file_id", u.FileID), zap.String("to_tier", string(rule.TargetTier)), zap.Error(err))
			continue
		}
		s.appendLog(ctx, u.FileID, preset.Name, from, rule.TargetTier, rule.Reason)
		moves++
	}
	s.logger.Info("automation scan finished",
		zap.String("preset", string(preset.Name)), zap.Int("scanned", len(usage)), zap.Int("moves", moves))
	return moves, nil
}

// MoveFile schedules a manual tier move outside the scanner.
func (s *AutomationService) MoveFile(ctx context.Context, fileID string, req dto.MoveFileRequest) error {
	target := models.Tier(req.ToTier)
	if !target.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported target tier")
	}
	version, err := s.versions.GetCurrent(ctx, fileID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "file has no current version")
	}
	locations, err := s.locations.ListByVersion(ctx, version.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
	var from *models.Tier
	for _, t := range models.ReadPriority {
		for i := range locations {
			if locations[i].Tier == t && locations[i].SyncStatus == models.SyncStatusSynced {
				tt := t
				from = &tt
				break
			}
		}
		if from != nil {
			break
		}
	}
	if from != nil && *from == target {
		return appErrors.Clone(appErrors.ErrConflict, "file already lives in the target tier")
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual_move"
	}
	if err := s.queue.EnqueueSync(ctx, fileID, version.ID, from, target, 5, reason); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue move")
	}
	fromTier := target
	if from != nil {
		fromTier = *from
	}
	s.appendLog(ctx, fileID, s.ActivePreset().Name, fromTier, target, reason)
	return nil
}

// Log returns recent reclassification decisions.
func (s *AutomationService) Log(ctx context.Context, limit int) ([]models.AutomationLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.repo.ListLog(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list automation log")
	}
	return entries, nil
}

func (s *AutomationService) appendLog(ctx context.Context, fileID string, preset models.PresetName, from, to models.Tier, reason string) {
	entry := &models.AutomationLogEntry{
		FileID:   fileID,
		Preset:   preset,
		FromTier: from,
		ToTier:   to,
		Reason:   reason,
	}
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		s.logger.Warn("failed to append automation log", zap.String("file_id", fileID), zap.Error(err))
	}
}

func (s *AutomationService) presetLocked(name models.PresetName) models.Preset {
	if name == models.PresetCustom {
		return models.Preset{Name: name, Rules: append([]models.PresetRule(nil), s.customRules...)}
	}
	return models.Preset{Name: name, Rules: builtinPresets[name]}
}

// matchRule returns the first rule the usage row satisfies, or nil. A
// rule whose target equals the current tier never matches, and CDN
// targets require a public file regardless of the rule's flag.
func matchRule(rules []models.PresetRule, u *models.FileUsage, now time.Time) *models.PresetRule {
	for i := range rules {
		rule := &rules[i]
		if rule.TargetTier == u.CurrentTier {
			continue
		}
		if rule.TargetTier == models.TierCDN && !u.IsPublic {
			continue
		}
		if rule.RequirePublic && !u.IsPublic {
			continue
		}
		if rule.MinAccess > 0 && u.AccessCount < rule.MinAccess {
			continue
		}
		if rule.MaxAccess > 0 && u.AccessCount > rule.MaxAccess {
			continue
		}
		if rule.MinIdleDays > 0 {
			last := u.LastAccessedAt
			if last != nil && now.Sub(*last) < time.Duration(rule.MinIdleDays)*24*time.Hour {
				continue
			}
		}
		return rule
	}
	return nil
}
