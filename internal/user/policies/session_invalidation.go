package policies

import (
	"context"

	"bluegold-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DestroyUserSessions logs a user out everywhere after a role change. The
// user_sessions:<user_id> set names every session:<sid> to drop; all keys go
// in one pipeline. It returns the number of sessions removed.
func DestroyUserSessions(ctx context.Context, rdb *redis.Client, userID string) int {
	if userID == "" || rdb == nil {
		return 0
	}
	setKey := middleware.UserSessionsPrefix + userID
	sids, err := rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("could not read user sessions")
	}
	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, middleware.SessionRedisPrefix+sid)
	}
	keys = append(keys, setKey)
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("could not destroy user sessions")
		return 0
	}
	return len(sids)
}
