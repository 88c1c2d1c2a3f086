package middleware

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionConfig for the Redis-backed session.
type SessionConfig struct {
	Secret            string
	RedisURL          string
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName  = "bluegold.sid"
	SessionRedisPrefix = "session:"
	UserSessionsPrefix = "user_sessions:"
	sessionMaxAge      = 24 * time.Hour

	localSessionID   = "session_id"
	localSessionData = "session_data"
)

// SessionUser is what an authenticated session carries under "user".
type SessionUser struct {
	UserID       string `json:"user_id"`
	Fullname     string `json:"fullname"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	ReferralCode string `json:"referral_code"`
}

func (u SessionUser) toMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       u.UserID,
		"fullname":      u.Fullname,
		"email":         u.Email,
		"role":          u.Role,
		"referral_code": u.ReferralCode,
	}
}

// Session dials redis from cfg.RedisURL and returns the session middleware
// with the client it uses.
func Session(cfg SessionConfig) (fiber.Handler, *redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)
	return SessionWithClient(rdb), rdb, nil
}

// sessionIDFromCookie accepts both "s:<id>" and "s:<id>.<sig>".
func sessionIDFromCookie(raw string) string {
	if !strings.HasPrefix(raw, "s:") {
		return raw
	}
	id, _, _ := strings.Cut(raw[2:], ".")
	return id
}

// SessionWithClient loads "session:<id>" before the handler and writes it back
// afterwards with a fresh TTL, so active investors stay signed in.
func SessionWithClient(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := sessionIDFromCookie(c.Cookies(SessionCookieName))
		ctx := c.UserContext()

		data := map[string]interface{}{}
		if sessionID != "" {
			b, err := rdb.Get(ctx, SessionRedisPrefix+sessionID).Bytes()
			switch {
			case err == nil:
				if jerr := json.Unmarshal(b, &data); jerr != nil {
					log.Warn().Err(jerr).Msg("discarding unreadable session")
					data = map[string]interface{}{}
				}
			case !errors.Is(err, redis.Nil):
				log.Warn().Err(err).Msg("session load failed")
			}
		}

		c.Locals(localSessionData, data)
		c.Locals(userLocal, data["user"])
		c.Locals(localSessionID, sessionID)

		if err := c.Next(); err != nil {
			return err
		}

		sid := GetSessionID(c)
		updated, _ := c.Locals(localSessionData).(map[string]interface{})
		if sid == "" || len(updated) == 0 {
			return nil
		}
		b, err := json.Marshal(updated)
		if err != nil {
			log.Warn().Err(err).Msg("session encode failed")
			return nil
		}
		if err := rdb.Set(ctx, SessionRedisPrefix+sid, b, sessionMaxAge).Err(); err != nil {
			log.Warn().Err(err).Str("path", c.Path()).Msg("session save failed")
		}
		return nil
	}
}

// GetSessionID returns the session id bound to the request, or "".
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(localSessionID).(string)
	return sid
}

// SetSessionUser stores user in the session. Call RegenerateSessionID first
// on login so a pre-auth id is never promoted.
func SetSessionUser(c *fiber.Ctx, user SessionUser) {
	data, _ := c.Locals(localSessionData).(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}
	m := user.toMap()
	data["user"] = m
	c.Locals(localSessionData, data)
	c.Locals(userLocal, m)
}

// RegenerateSessionID binds a new id to the request and returns it. The
// cookie value is "s:" + id.
func RegenerateSessionID(c *fiber.Ctx) string {
	newID := uuid.NewString()
	c.Locals(localSessionID, newID)
	return newID
}

// DestroySession empties the request's session so nothing is written back.
// The caller clears the cookie and the redis key.
func DestroySession(c *fiber.Ctx) {
	c.Locals(localSessionData, map[string]interface{}{})
	c.Locals(userLocal, nil)
	c.Locals(localSessionID, "")
}

// SessionCookieConfig returns the cookie template for set and clear.
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	sameSite := fiber.CookieSameSiteLaxMode
	if cfg.AllowCrossSiteDev {
		sameSite = fiber.CookieSameSiteNoneMode
	}
	return fiber.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   cfg.IsProduction || cfg.AllowCrossSiteDev,
		SameSite: sameSite,
	}
}
