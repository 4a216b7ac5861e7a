package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gamification-service/internal/domain"
)

// ActionCatalog is the registry of reward actions the ledger awards against.
// Edits replace the definition for future awards only; account history keeps the points it earned.
type ActionCatalog struct {
	mu      sync.RWMutex
	actions map[string]domain.RewardAction
}

// NewActionCatalog validates and registers the given actions.
func NewActionCatalog(actions []domain.RewardAction) (*ActionCatalog, error) {
	c := &ActionCatalog{actions: make(map[string]domain.RewardAction, len(actions))}
	for _, a := range actions {
		if err := validateAction(a); err != nil {
			return nil, err
		}
		if _, dup := c.actions[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidAction, a.ID)
		}
		c.actions[a.ID] = a
	}
	return c, nil
}

// Get returns the action or ErrUnknownAction.
func (c *ActionCatalog) Get(id string) (domain.RewardAction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.actions[id]
	if !ok {
		return domain.RewardAction{}, domain.ErrUnknownAction
	}
	return a, nil
}

// List returns every action sorted by category then id.
func (c *ActionCatalog) List() []domain.RewardAction {
	c.mu.RLock()
	out := make([]domain.RewardAction, 0, len(c.actions))
	for _, a := range c.actions {
		out = append(out, a)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Upsert adds or replaces an action definition.
func (c *ActionCatalog) Upsert(a domain.RewardAction) error {
	if err := validateAction(a); err != nil {
		return err
	}
	c.mu.Lock()
	c.actions[a.ID] = a
	c.mu.Unlock()
	return nil
}

// SetEnabled toggles an existing action.
func (c *ActionCatalog) SetEnabled(id string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.actions[id]
	if !ok {
		return domain.ErrUnknownAction
	}
	a.IsEnabled = enabled
	c.actions[id] = a
	return nil
}

func validateAction(a domain.RewardAction) error {
	switch {
	case a.ID == "":
		return fmt.Errorf("%w: missing id", domain.ErrInvalidAction)
	case a.PointValue < 0:
		return fmt.Errorf("%w: %q has negative point value", domain.ErrInvalidAction, a.ID)
	case !a.Category.Valid():
		return fmt.Errorf("%w: %q has unknown category %q", domain.ErrInvalidAction, a.ID, a.Category)
	case a.MaxOccurrences < 0:
		return fmt.Errorf("%w: %q has negative max occurrences", domain.ErrInvalidAction, a.ID)
	case a.Cooldown < 0:
		return fmt.Errorf("%w: %q has negative cooldown", domain.ErrInvalidAction, a.ID)
	}
	return nil
}

// Reward action ids the application awards itself.
const (
	ActionWeeklyQuizCompleted = "weekly_quiz_completed"
	ActionBrainTeaserSolved   = "brain_teaser_solved"
	ActionLiveQuizPodium      = "live_quiz_podium"
)

// DefaultRewardActions is the catalog used when the config does not override it.
func DefaultRewardActions() []domain.RewardAction {
	day := 24 * time.Hour
	return []domain.RewardAction{
		{ID: "daily_check_in", Name: "Daily check-in", PointValue: 5, Category: domain.CategoryEngagement, IsEnabled: true, Cooldown: 20 * time.Hour},
		{ID: "profile_completed", Name: "Complete your profile", PointValue: 50, Category: domain.CategoryEngagement, IsEnabled: true, MaxOccurrences: 1},
		{ID: "onboarding_completed", Name: "Finish onboarding", PointValue: 100, Category: domain.CategoryEngagement, IsEnabled: true, MaxOccurrences: 1},
		{ID: ActionWeeklyQuizCompleted, Name: "Weekly quiz completed", PointValue: 25, Category: domain.CategoryEngagement, IsEnabled: true, Cooldown: 6 * day},
		{ID: ActionBrainTeaserSolved, Name: "Brain teaser solved", PointValue: 10, Category: domain.CategoryEngagement, IsEnabled: true, Cooldown: 20 * time.Hour},
		{ID: ActionLiveQuizPodium, Name: "Live quiz podium finish", PointValue: 40, Category: domain.CategoryEvent, IsEnabled: true},
		{ID: "content_submitted", Name: "Content submitted", PointValue: 20, Category: domain.CategoryContent, IsEnabled: true, RequiresApproval: true},
		{ID: "content_featured", Name: "Content featured", PointValue: 75, Category: domain.CategoryContent, IsEnabled: true, RequiresApproval: true},
		{ID: "event_attended", Name: "Event attended", PointValue: 30, Category: domain.CategoryEvent, IsEnabled: true, Cooldown: time.Hour},
		{ID: "event_hosted", Name: "Event hosted", PointValue: 150, Category: domain.CategoryEvent, IsEnabled: true, RequiresApproval: true},
		{ID: "survey_completed", Name: "Feedback survey completed", PointValue: 15, Category: domain.CategoryFeedback, IsEnabled: true, Cooldown: day},
		{ID: "referral_joined", Name: "Referred member joined", PointValue: 100, Category: domain.CategoryReferral, IsEnabled: true, MaxOccurrences: 10},
	}
}
