package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/do"
)

var _ do.Shutdownable = (*FileStore)(nil)

// FileStore keeps everything in memory and rewrites a JSON lines file on
// every change.
type FileStore struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu     sync.RWMutex
	chats  map[int64]ChatState
	tokens map[string]tokenEntry
	saves  int
}

func NewFileStore(path string, ttl time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	s := &FileStore{
		path:   path,
		ttl:    ttl,
		now:    time.Now,
		chats:  make(map[int64]ChatState),
		tokens: make(map[string]tokenEntry),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *FileStore) load() error {
	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open storage file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item record
		if err = json.Unmarshal([]byte(line), &item); err != nil {
			return fmt.Errorf("failed to parse JSON line: %w", err)
		}

		switch item.Kind {
		case kindChat:
			chatID, err := strconv.ParseInt(item.Key, 10, 64)
			if err != nil || item.Chat == nil {
				slog.Warn("Skipping invalid chat record", "key", item.Key)
				continue
			}
			s.chats[chatID] = *item.Chat
		case kindToken:
			s.tokens[item.Key] = tokenEntry{token: item.Token, createdAt: item.CreatedAt}
		default:
			slog.Warn("Skipping unknown storage record", "kind", item.Kind)
		}
	}

	if err = scanner.Err(); err != nil {
		return fmt.Errorf("error reading storage file: %w", err)
	}

	return nil
}

// save must be called with mu held.
func (s *FileStore) save() error {
	s.saves++
	tmpPath := s.path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create/open storage file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	write := func(item record) error {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		if _, err = writer.WriteString(string(data) + "\n"); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		return nil
	}

	for chatID, state := range s.chats {
		state := state
		if err = write(record{Kind: kindChat, Key: strconv.FormatInt(chatID, 10), Chat: &state}); err != nil {
			return err
		}
	}

	for key, entry := range s.tokens {
		if err = write(record{Kind: kindToken, Key: key, Token: entry.token, CreatedAt: entry.createdAt}); err != nil {
			return err
		}
	}

	if err = writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("failed to close storage file: %w", err)
	}

	if err = os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace storage file: %w", err)
	}

	return nil
}

func (s *FileStore) LoadChat(_ context.Context, chatID int64) (ChatState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.chats[chatID]
	if !ok {
		return ChatState{Step: StepQuery}, nil
	}

	return state, nil
}

func (s *FileStore) SaveChat(_ context.Context, chatID int64, state ChatState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.UpdatedAt = s.now()
	s.chats[chatID] = state

	return s.save()
}

func (s *FileStore) PutToken(ctx context.Context, token string) (string, error) {
	keys, err := s.PutTokens(ctx, []string{token})
	if err != nil {
		return "", err
	}
	return keys[0], nil
}

func (s *FileStore) PutTokens(_ context.Context, tokens []string) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		key := uuid.NewString()
		s.tokens[key] = tokenEntry{token: token, createdAt: now}
		keys = append(keys, key)
	}

	if err := s.save(); err != nil {
		for _, key := range keys {
			delete(s.tokens, key)
		}
		return nil, err
	}

	return keys, nil
}

func (s *FileStore) Token(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tokens[key]
	if !ok || s.expired(entry) {
		return "", fmt.Errorf("token %s: %w", key, ErrNotFound)
	}

	return entry.token, nil
}

func (s *FileStore) expired(entry tokenEntry) bool {
	return s.ttl > 0 && s.now().Sub(entry.createdAt) > s.ttl
}

func (s *FileStore) Prune(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.tokens {
		if entry.createdAt.Before(before) {
			delete(s.tokens, key)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}

	if err := s.save(); err != nil {
		return 0, err
	}

	return removed, nil
}

func (s *FileStore) Shutdown() error {
	return nil
}
