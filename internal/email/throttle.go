package email

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisResendAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// ThrottledSender caps how many emails one recipient receives per window.
// Redis failures let the message through.
type ThrottledSender struct {
	next   Sender
	client redisEvaler
	window time.Duration
	max    int
	prefix string
	logger *slog.Logger
}

// NewThrottledSender wraps next; a nil client disables throttling
func NewThrottledSender(next Sender, client *redis.Client, window time.Duration, max int, logger *slog.Logger) Sender {
	if client == nil {
		return next
	}
	return newThrottledSender(next, client, window, max, logger)
}

func newThrottledSender(next Sender, client redisEvaler, window time.Duration, max int, logger *slog.Logger) *ThrottledSender {
	if window <= 0 {
		window = time.Hour
	}
	if max <= 0 {
		max = 1
	}
	return &ThrottledSender{
		next:   next,
		client: client,
		window: window,
		max:    max,
		prefix: "email:rl:",
		logger: logger,
	}
}

func (s *ThrottledSender) Send(ctx context.Context, msg Message) error {
	if !s.allow(ctx, msg.To) {
		return ErrThrottled
	}
	return s.next.Send(ctx, msg)
}

func (s *ThrottledSender) allow(ctx context.Context, recipient string) bool {
	key := strings.ToLower(strings.TrimSpace(recipient))
	if key == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	seconds := int(s.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := s.client.Eval(ctx, redisResendAllowScript, []string{s.prefix + key}, seconds).Int()
	if err != nil {
		s.logger.WarnContext(ctx, "resend throttle unavailable", slog.Any("error", err))
		return true
	}
	return count <= s.max
}
