package redis

import (
	"context"
	"strconv"
	"time"

	"gamification-service/internal/app"
	"gamification-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// LeaderboardStore keeps the community leaderboard in Redis so reads never scan accounts.
//
//	ZADD leaderboard:{board} {lifetimePoints} {userID}
//	HSET leaderboard:{board}:last {userID} {awardedAt unix nanos}
//	HSET leaderboard:{board}:names {userID} {name}
//
// Awards are applied by one script so an out-of-order delivery cannot move either value back.
//
// Ties are broken by app.Rank using the last-award hash, not by Redis member order.
type LeaderboardStore struct {
	client *redis.Client
	board  string
}

func NewLeaderboardStore(client *redis.Client, board string) *LeaderboardStore {
	return &LeaderboardStore{client: client, board: board}
}

// recordAward moves a member forward only: a lower score, or an equal score with an older
// timestamp, leaves the score and the tie-break hash untouched. Timestamps are unix nanos
// compared as digit strings.
var recordAward = redis.NewScript(`
local function newer(a, b)
	if #a ~= #b then return #a > #b end
	return a > b
end
local cur = redis.call('ZSCORE', KEYS[1], ARGV[1])
if cur then
	local score, prev = tonumber(ARGV[2]), tonumber(cur)
	if score < prev then return 0 end
	local last = redis.call('HGET', KEYS[2], ARGV[1])
	if score == prev and last and newer(last, ARGV[3]) then return 0 end
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
if ARGV[4] ~= '' then redis.call('HSET', KEYS[3], ARGV[1], ARGV[4]) end
return 1
`)

// OnAward implements app.AwardListener.
func (s *LeaderboardStore) OnAward(ctx context.Context, event domain.AwardEvent) error {
	scores, last, names := leaderboardKeys(s.board)
	return recordAward.Run(ctx, s.client, []string{scores, last, names},
		event.UserID,
		event.LifetimePoints,
		strconv.FormatInt(event.AwardedAt.UnixNano(), 10),
		event.Name,
	).Err()
}

// Rebuild replaces the board with the given accounts.
func (s *LeaderboardStore) Rebuild(ctx context.Context, accounts []domain.PointsAccount) error {
	scores, last, names := leaderboardKeys(s.board)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, scores, last, names)
	for _, a := range accounts {
		pipe.ZAdd(ctx, scores, redis.Z{Score: float64(a.LifetimePoints), Member: a.UserID})
		if ts := a.LastActionAt(); ts != nil {
			pipe.HSet(ctx, last, a.UserID, ts.UnixNano())
		}
		if a.Name != "" {
			pipe.HSet(ctx, names, a.UserID, a.Name)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Top returns the ranked board truncated to limit (all entries when limit <= 0).
func (s *LeaderboardStore) Top(ctx context.Context, limit int) (domain.Leaderboard, error) {
	scores, last, names := leaderboardKeys(s.board)
	zs, err := s.client.ZRevRangeWithScores(ctx, scores, 0, -1).Result()
	if err != nil {
		return domain.Leaderboard{}, err
	}
	board := domain.Leaderboard{ID: s.board, Entries: []domain.LeaderboardEntry{}, UpdatedAt: time.Now()}
	if len(zs) == 0 {
		return board, nil
	}

	ids := make([]string, len(zs))
	for i, z := range zs {
		ids[i] = z.Member.(string)
	}
	lastVals, err := s.client.HMGet(ctx, last, ids...).Result()
	if err != nil {
		return domain.Leaderboard{}, err
	}
	nameVals, err := s.client.HMGet(ctx, names, ids...).Result()
	if err != nil {
		return domain.Leaderboard{}, err
	}

	standings := make([]app.Standing, len(zs))
	for i, z := range zs {
		standings[i] = app.Standing{UserID: ids[i], Score: int(z.Score)}
		if name, ok := nameVals[i].(string); ok {
			standings[i].Name = name
		}
		if raw, ok := lastVals[i].(string); ok {
			if nanos, err := strconv.ParseInt(raw, 10, 64); err == nil {
				ts := time.Unix(0, nanos)
				standings[i].LastScoredAt = &ts
			}
		}
	}

	board.Entries = app.Rank(standings)
	if limit > 0 && len(board.Entries) > limit {
		board.Entries = board.Entries[:limit]
	}
	return board, nil
}
