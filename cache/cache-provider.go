package cache

import (
	"database/sql"
	"encoding/json"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// CacheProvider stores cache entries by key.
// It does not interpret freshness, that is the Store's job.
//
// Implementations must be thread-safe!
type CacheProvider interface {
	// Get returns the entry for the given key, if it exists.
	Get(key string) (Entry, bool, error)
	// Put stores the entry under its key, replacing any previous entry.
	Put(entry Entry) error
	// Purge removes the entry for the given key.
	// It reports whether there was an entry to remove.
	Purge(key string) (bool, error)
	// All returns every stored entry.
	All() ([]Entry, error)
	// Clear removes all entries and returns how many there were.
	Clear() (int, error)
}

type MemCache struct {
	mutex *sync.RWMutex
	db    map[string]Entry
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[string]Entry),
	}
}

func (m MemCache) Get(key string) (Entry, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.db[key]
	return entry, ok, nil
}

func (m MemCache) Put(entry Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[entry.Key] = entry
	return nil
}

func (m MemCache) Purge(key string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, ok := m.db[key]
	delete(m.db, key)
	return ok, nil
}

func (m MemCache) All() ([]Entry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entries := make([]Entry, 0, len(m.db))
	for _, entry := range m.db {
		entries = append(entries, entry)
	}
	return entries, nil
}

func (m MemCache) Clear() (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	count := len(m.db)
	for key := range m.db {
		delete(m.db, key)
	}
	return count, nil
}

// MemoryDSN is a shared in-memory SQLite database.
// It lives as long as the process keeps a connection open.
const MemoryDSN = "file::memory:?cache=shared"

// SQLiteCache keeps entries as JSON in SQLite.
// Only in-memory databases are meant to be used, the simulator has no persistent state.
type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

func NewSQLiteCache(dsn string) (SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return SQLiteCache{}, err
	}
	// a single connection keeps the in-memory database alive
	db.SetMaxOpenConns(1)
	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS cache (key TEXT PRIMARY KEY, expires INTEGER, bytes BLOB)"); err != nil {
		db.Close()
		return SQLiteCache{}, err
	}
	if _, err = db.Exec("CREATE INDEX IF NOT EXISTS expires_idx ON cache (expires)"); err != nil {
		db.Close()
		return SQLiteCache{}, err
	}
	return SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteCache) Get(key string) (Entry, bool, error) {
	var bytes []byte
	err := s.db.QueryRow("SELECT bytes FROM cache WHERE key = ?", key).Scan(&bytes)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	} else if err != nil {
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(bytes, &entry); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (s SQLiteCache) Put(entry Entry) error {
	bytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err = s.db.Exec("INSERT OR REPLACE INTO cache (key, expires, bytes) VALUES (?, ?, ?)", entry.Key, entry.ExpiresAt.UnixMilli(), bytes)
	return err
}

func (s SQLiteCache) Purge(key string) (bool, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	result, err := s.db.Exec("DELETE FROM cache WHERE key = ?", key)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func (s SQLiteCache) All() ([]Entry, error) {
	entries := make([]Entry, 0)
	rows, err := s.db.Query("SELECT bytes FROM cache ORDER BY expires ASC")
	if err != nil {
		return entries, err
	}
	defer rows.Close()
	for rows.Next() {
		var bytes []byte
		if err := rows.Scan(&bytes); err != nil {
			return entries, err
		}
		var entry Entry
		if err := json.Unmarshal(bytes, &entry); err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s SQLiteCache) Clear() (int, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	result, err := s.db.Exec("DELETE FROM cache")
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}

func (s SQLiteCache) Close() error {
	return s.db.Close()
}
