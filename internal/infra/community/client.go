package community

import (
	"context"
	"fmt"
	"time"

	"gamification-service/internal/domain"
	"github.com/go-resty/resty/v2"
)

// Client talks to the community platform's member rewards API.
type Client struct {
	http *resty.Client
}

// NewClient builds a client against baseURL authenticated with a bearer apiKey.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		http.SetAuthToken(apiKey)
	}
	return &Client{http: http}
}

// PointsPush mirrors one award onto the platform.
type PointsPush struct {
	UserID         string    `json:"userId"`
	ActionID       string    `json:"actionId"`
	ReferenceID    string    `json:"referenceId"`
	Points         int       `json:"points"`
	LifetimePoints int       `json:"lifetimePoints"`
	Level          int       `json:"level"`
	AwardedAt      time.Time `json:"awardedAt"`
}

// RewardItem is a reward the member can claim on the platform.
type RewardItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Cost     int    `json:"cost"`
	Eligible bool   `json:"eligible"`
}

// RewardSummary is the platform's view of a member's rewards.
type RewardSummary struct {
	UserID  string       `json:"userId"`
	Points  int          `json:"points"`
	Badges  []string     `json:"badges"`
	Rewards []RewardItem `json:"rewards"`
}

type apiError struct {
	Message string `json:"message"`
}

// PushPoints posts an award to /members/{userId}/points. The reference id lets the platform
// drop replays of the same award.
func (c *Client) PushPoints(ctx context.Context, push PointsPush) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("userId", push.UserID).
		SetBody(push).
		SetError(&apiError{}).
		Post("/members/{userId}/points")
	return checkResponse("push points", resp, err)
}

// PushBadge posts an unlocked achievement to /members/{userId}/badges.
func (c *Client) PushBadge(ctx context.Context, userID string, badge domain.UnlockedAchievement) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("userId", userID).
		SetBody(badge).
		SetError(&apiError{}).
		Post("/members/{userId}/badges")
	return checkResponse("push badge", resp, err)
}

// RewardSummary fetches /members/{userId}/rewards.
func (c *Client) RewardSummary(ctx context.Context, userID string) (RewardSummary, error) {
	var summary RewardSummary
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("userId", userID).
		SetResult(&summary).
		SetError(&apiError{}).
		Get("/members/{userId}/rewards")
	if err := checkResponse("reward summary", resp, err); err != nil {
		return RewardSummary{}, err
	}
	return summary, nil
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("community %s: %w", op, err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*apiError); ok && e.Message != "" {
			return fmt.Errorf("community %s: %s: %s", op, resp.Status(), e.Message)
		}
		return fmt.Errorf("community %s: %s", op, resp.Status())
	}
	return nil
}
