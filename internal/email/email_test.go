package email

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	err  error
	sent []Message
}

func (s *stubSender) Send(_ context.Context, msg Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func TestBuild(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := string(Build("Market <noreply@market.example>", []string{"a@example.com", "b@example.com"}, "Neue Nachricht für dich", "line one\nline two", now))

	assert.Contains(t, raw, "From: Market <noreply@market.example>\r\n")
	assert.Contains(t, raw, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.Contains(t, raw, "Date: Wed, 01 May 2024 12:00:00 +0000\r\n")
	assert.Contains(t, raw, "@market.example>\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nline one\r\nline two"))
}

func TestCompositeEmailSender(t *testing.T) {
	ok := &stubSender{}
	failing := &stubSender{err: errors.New("relay down")}
	cs := NewCompositeEmailSender(ok)
	cs.AddSender(nil)
	cs.AddSender(failing)

	err := cs.Send(context.Background(), Message{To: []string{"a@example.com"}, Kind: "welcome"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
	assert.Len(t, ok.sent, 1)
	assert.Len(t, failing.sent, 1)

	assert.Error(t, NewCompositeEmailSender().Send(context.Background(), Message{}))
}

func TestFileEmailSender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mail", "out.log")
	s, err := NewFileEmailSender(path)
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi", Kind: "welcome", Raw: []byte("body")}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Kind: welcome")
	assert.Contains(t, string(data), "body")

	_, err = NewFileEmailSender("  ")
	assert.Error(t, err)
}

func TestMockEmailKey(t *testing.T) {
	assert.Equal(t, "mockemail:a@example.com:new_message", MockEmailKey("A@Example.com", "new_message"))
}
