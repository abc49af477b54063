// Package session はベアラートークンと有効期限の保持・永続化を提供する。
// プロセス再起動後もトークンが有効な間は再ログイン不要となるよう、
// 状態ファイルに2つのエントリ（トークンと絶対有効期限）を書き込む。
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// 状態ファイル内のエントリキー。
const (
	tokenKey     = "bat_signal_token"
	expiresAtKey = "bat_token_expires_at"
)

// Store はセッション状態を保持する。
// メモリ上の状態と状態ファイルを常に一致させる。
// ネットワーク呼び出しは一切行わない。
type Store struct {
	mu        sync.RWMutex
	path      string
	token     string
	expiresAt int64 // エポックミリ秒。0は未設定を表す。

	// now はテストで時刻を固定するために差し替え可能。
	now func() time.Time
}

// New は状態ファイルからセッションを復元したStoreを生成する。
// ファイルが存在しない場合は空のセッションとして扱う。
func New(path string) (*Store, error) {
	s := &Store{
		path: path,
		now:  time.Now,
	}

	if err := s.rehydrate(); err != nil {
		return nil, fmt.Errorf("failed to restore session state: %w", err)
	}

	return s, nil
}

// Save はトークンと残り有効期間（秒）を受け取り、絶対有効期限を計算して
// メモリと状態ファイルの両方に書き込む。トークンの内容は検証しない。
func (s *Store) Save(token string, lifetimeSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.expiresAt = s.now().Add(time.Duration(lifetimeSeconds) * time.Second).UnixMilli()

	return s.persist()
}

// Clear はトークンと有効期限をメモリから消去し、状態ファイルを削除する。
// 既にクリア済みでも安全に呼び出せる（冪等）。
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.expiresAt = 0

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session state file: %w", err)
	}
	return nil
}

// Token は現在のトークンを返す。未認証の場合は空文字列。
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Snapshot は現在のトークンと有効期限（エポックミリ秒）を返す。
func (s *Store) Snapshot() (token string, expiresAt int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.expiresAt
}

// rehydrate は状態ファイルから2つのエントリを読み込む。
// ファイル未存在は正常（空セッション）として扱う。
func (s *Store) rehydrate() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("invalid session state file %s: %w", s.path, err)
	}

	s.token = entries[tokenKey]
	if raw, ok := entries[expiresAtKey]; ok && raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid expiry in session state file %s: %w", s.path, err)
		}
		s.expiresAt = ms
	}

	return nil
}

// persist は現在の状態を状態ファイルに書き込む。
// トークンを含むためパーミッションは0600とする。
func (s *Store) persist() error {
	entries := map[string]string{
		tokenKey:     s.token,
		expiresAtKey: strconv.FormatInt(s.expiresAt, 10),
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session state directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session state file: %w", err)
	}
	return nil
}
