// Package store is the credential store: account creation, login, profile
// lookup, report/suspend tracking, and win/loss stats, backed by a local
// SQLite file opened through database/sql (no cgo, modernc.org/sqlite).
//
// Grounded on fernandomesser-hangman's db/database.go (sync.Once init,
// WAL mode, busy timeout) and api/auth.go (bcrypt password hashing). All
// mutations and reads are serialized by a single mutex per SPEC_FULL.md
// §4.2 — SQLite already serializes writers internally, but the mutex also
// protects the read-then-write report/suspend sequence from a lost update.
package store

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	_ "modernc.org/sqlite"
)

// SuspendThreshold is the report count at which an account is auto-suspended.
const SuspendThreshold = 5

// Result codes returned by store operations, matching SPEC_FULL.md §4.2.
type SignupResult int

const (
	SignupOK SignupResult = iota
	SignupDuplicate
	SignupDBError
)

type LoginResult int

const (
	LoginOK LoginResult = iota
	LoginNoAccount
	LoginWrongPassword
	LoginSuspended
	LoginDBError
)

type ReportResult int

const (
	ReportOK ReportResult = iota
	ReportNotFound
)

// UserRecord mirrors the users table row visible to the rest of the server.
type UserRecord struct {
	ID           string
	Nickname     string
	ReportCount  int
	IsSuspended  bool
	Wins, Losses int
}

var idFold = cases.Fold()

func normalizeID(id string) string {
	return idFold.String(id)
}

// Store is the credential store. Zero value is not usable; call Open.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating if absent) the SQLite file at path and ensures the
// schema exists.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Warn("could not enable WAL mode", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		log.Warn("could not set busy timeout", zap.Error(err))
	}

	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		pw_hash       TEXT NOT NULL,
		salt          TEXT NOT NULL,
		nickname      TEXT UNIQUE NOT NULL,
		report_count  INTEGER NOT NULL DEFAULT 0,
		is_suspended  INTEGER NOT NULL DEFAULT 0,
		wins          INTEGER NOT NULL DEFAULT 0,
		losses        INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func hashPassword(password, salt string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password+salt), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckID reports whether an account with this id already exists.
func (s *Store) CheckID(id string) (exists bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = normalizeID(id)
	row := s.db.QueryRow("SELECT 1 FROM users WHERE id = ?", id)
	return row.Scan(new(int)) == nil
}

// Signup creates a new account. Fails with SignupDuplicate if id or
// nickname already exists.
func (s *Store) Signup(id, password, nickname string) SignupResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	normID := normalizeID(id)

	var dupe int
	row := s.db.QueryRow("SELECT 1 FROM users WHERE id = ? OR nickname = ?", normID, nickname)
	if row.Scan(&dupe) == nil {
		return SignupDuplicate
	}

	salt, err := randomSalt(16)
	if err != nil {
		s.log.Error("salt generation failed", zap.Error(err))
		return SignupDBError
	}
	hash, err := hashPassword(password, salt)
	if err != nil {
		s.log.Error("password hashing failed", zap.Error(err))
		return SignupDBError
	}

	_, err = s.db.Exec(
		`INSERT INTO users(id, pw_hash, salt, nickname, report_count, is_suspended, wins, losses)
		 VALUES (?, ?, ?, ?, 0, 0, 0, 0)`,
		normID, hash, salt, nickname,
	)
	if err != nil {
		s.log.Error("signup insert failed", zap.Error(err), zap.String("id", normID))
		return SignupDBError
	}
	return SignupOK
}

// Login validates credentials. Never logs the password.
func (s *Store) Login(id, password string) LoginResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	normID := normalizeID(id)

	var hash, salt string
	var suspended int
	row := s.db.QueryRow("SELECT pw_hash, salt, is_suspended FROM users WHERE id = ?", normID)
	switch err := row.Scan(&hash, &salt, &suspended); {
	case errors.Is(err, sql.ErrNoRows):
		return LoginNoAccount
	case err != nil:
		s.log.Error("login query failed", zap.Error(err))
		return LoginDBError
	}

	if suspended != 0 {
		return LoginSuspended
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password+salt)) != nil {
		return LoginWrongPassword
	}

	return LoginOK
}

// LookupProfile returns the account's profile, or nil if no such id exists.
func (s *Store) LookupProfile(id string) *UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	normID := normalizeID(id)

	var rec UserRecord
	var suspended int
	row := s.db.QueryRow(
		`SELECT id, nickname, report_count, is_suspended, wins, losses FROM users WHERE id = ?`,
		normID,
	)
	if err := row.Scan(&rec.ID, &rec.Nickname, &rec.ReportCount, &suspended, &rec.Wins, &rec.Losses); err != nil {
		return nil
	}
	rec.IsSuspended = suspended != 0
	return &rec
}

// Report increments id's report count, auto-suspending at SuspendThreshold.
func (s *Store) Report(id string) ReportResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	normID := normalizeID(id)

	var count int
	row := s.db.QueryRow("SELECT report_count FROM users WHERE id = ?", normID)
	if err := row.Scan(&count); err != nil {
		return ReportNotFound
	}

	count++
	suspend := count >= SuspendThreshold
	if _, err := s.db.Exec(
		"UPDATE users SET report_count = ?, is_suspended = is_suspended OR ? WHERE id = ?",
		count, suspend, normID,
	); err != nil {
		s.log.Error("report update failed", zap.Error(err))
		return ReportNotFound
	}
	return ReportOK
}

// ReportByNickname increments the report count of the account currently
// holding nickname, auto-suspending at SuspendThreshold. The wire-level
// REPORT command identifies its target by nickname rather than id (the
// reporting player only ever sees nicknames in-game), so this is the
// entry point netrun's lobby dispatch actually calls; Report(id) remains
// for callers that already have the account id in hand.
func (s *Store) ReportByNickname(nickname string) ReportResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	row := s.db.QueryRow("SELECT report_count FROM users WHERE nickname = ?", nickname)
	if err := row.Scan(&count); err != nil {
		return ReportNotFound
	}

	count++
	suspend := count >= SuspendThreshold
	if _, err := s.db.Exec(
		"UPDATE users SET report_count = ?, is_suspended = is_suspended OR ? WHERE nickname = ?",
		count, suspend, nickname,
	); err != nil {
		s.log.Error("report update failed", zap.Error(err))
		return ReportNotFound
	}
	return ReportOK
}

// SaveResult increments nickname's win or loss counter. result must be
// "WIN" or "LOSS".
func (s *Store) SaveResult(nickname, result string) ReportResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var column string
	switch result {
	case "WIN":
		column = "wins"
	case "LOSS":
		column = "losses"
	default:
		return ReportNotFound
	}

	res, err := s.db.Exec(fmt.Sprintf("UPDATE users SET %s = %s + 1 WHERE nickname = ?", column, column), nickname)
	if err != nil {
		s.log.Error("save result failed", zap.Error(err))
		return ReportNotFound
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ReportNotFound
	}
	return ReportOK
}

// EditNickname changes the nickname attached to id, failing if the new
// nickname is already taken by another account.
func (s *Store) EditNickname(id, newNick string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	normID := normalizeID(id)

	var dupe string
	row := s.db.QueryRow("SELECT id FROM users WHERE nickname = ?", newNick)
	if err := row.Scan(&dupe); err == nil && dupe != normID {
		return false
	}

	res, err := s.db.Exec("UPDATE users SET nickname = ? WHERE id = ?", newNick, normID)
	if err != nil {
		return false
	}
	n, _ := res.RowsAffected()
	return n == 1
}

const saltAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func randomSalt(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i, v := range b {
		b[i] = saltAlphabet[int(v)%len(saltAlphabet)]
	}
	return string(b), nil
}
