package community

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gamification-service/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestClientPushesPointsAndBadges(t *testing.T) {
	var (
		paths []string
		auth  []string
		push  PointsPush
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		paths = append(paths, r.Method+" "+r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/points") {
			_ = json.NewDecoder(r.Body).Decode(&push)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", time.Second)
	ctx := context.Background()

	require.NoError(t, client.PushPoints(ctx, PointsPush{UserID: "u1", ActionID: "daily_check_in", Points: 5}))
	require.NoError(t, client.PushBadge(ctx, "u1", domain.UnlockedAchievement{AchievementID: "first_steps"}))

	require.Equal(t, []string{"POST /members/u1/points", "POST /members/u1/badges"}, paths)
	require.Equal(t, []string{"Bearer secret", "Bearer secret"}, auth)
	require.Equal(t, "daily_check_in", push.ActionID)
	require.Equal(t, 5, push.Points)
}

func TestClientRewardSummary(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"userId":"u1","points":120,"badges":["first_steps"],"rewards":[{"id":"mug","name":"Mug","cost":100,"eligible":true}]}`))
	}))
	defer server.Close()

	summary, err := NewClient(server.URL, "", time.Second).RewardSummary(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "/members/u1/rewards", path)
	require.Equal(t, 120, summary.Points)
	require.Len(t, summary.Rewards, 1)
	require.True(t, summary.Rewards[0].Eligible)
}

func TestClientReportsAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	}))
	defer server.Close()

	err := NewClient(server.URL, "", time.Second).PushPoints(context.Background(), PointsPush{UserID: "u1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "upstream down")
}
