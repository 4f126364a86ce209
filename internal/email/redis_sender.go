package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const mockEmailTTL = 5 * time.Minute

// StoredEmail is the JSON record a RedisSender keeps per recipient and kind.
type StoredEmail struct {
	To      string    `json:"to"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Kind    string    `json:"kind"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// RedisSender stores emails in Redis instead of delivering them, so tests and
// the service API can read them back.
type RedisSender struct {
	client *redis.Client
	from   string
}

func NewRedisSender(client *redis.Client, from string) *RedisSender {
	return &RedisSender{client: client, from: from}
}

// MockEmailKey is the Redis key holding the last email of a kind sent to an address.
func MockEmailKey(to, kind string) string {
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(to), kind)
}

func (s *RedisSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	kind := msg.Kind
	if kind == "" {
		kind = "unknown"
	}

	record := StoredEmail{
		To:      strings.Join(msg.To, ", "),
		From:    s.from,
		Subject: msg.Subject,
		Kind:    kind,
		Body:    string(msg.Raw),
		SentAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(msg.To[0], kind)
	if err := s.client.Set(ctx, key, data, mockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	return nil
}

// Fetch returns the stored email, or nil when there is none.
func (s *RedisSender) Fetch(ctx context.Context, to, kind string) (*StoredEmail, error) {
	data, err := s.client.Get(ctx, MockEmailKey(to, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mock email: %w", err)
	}
	var record StoredEmail
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode mock email: %w", err)
	}
	return &record, nil
}
