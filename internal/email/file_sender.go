package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileEmailSender appends every email to a local file.
type FileEmailSender struct {
	mu       sync.Mutex
	filePath string
}

// NewFileEmailSender creates a new FileEmailSender, creating the directory
// of filePath if needed.
func NewFileEmailSender(filePath string) (*FileEmailSender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}

	return &FileEmailSender{filePath: filePath}, nil
}

func (s *FileEmailSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	entry := fmt.Sprintf("--- Email Logged at %s (To: %v, Subject: %s, Kind: %s) ---\n",
		time.Now().Format(time.RFC3339Nano), msg.To, msg.Subject, msg.Kind)
	if _, err := file.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}
	if _, err := file.Write(msg.Raw); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}
	if _, err := file.WriteString("\n--- End Logged Email ---\n\n"); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}
	return nil
}
