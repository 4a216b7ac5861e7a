package redis

import "fmt"

// Key prefixes shared by every Redis-backed store.
const (
	EventPrefix       = "live:event"
	SessionPrefix     = "live:session"
	LeaderboardPrefix = "leaderboard"
)

func namespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// eventKey returns "live:event:{eventID}".
func eventKey(eventID string) string {
	return namespaceKey(EventPrefix, eventID)
}

// sessionKey returns "live:session:{eventID}".
func sessionKey(eventID string) string {
	return namespaceKey(SessionPrefix, eventID)
}

// leaderboardKeys returns the score zset plus the hashes holding last-award times and names.
func leaderboardKeys(board string) (scores, lastAward, names string) {
	base := namespaceKey(LeaderboardPrefix, board)
	return base, base + ":last", base + ":names"
}
