package database

import (
	"context"
	"fmt"
	"path/filepath"

	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// OpenSessionStore opens the whatsmeow credential store for one phone
// number. By default each number gets its own sqlite database inside its
// session directory; when sharedDSN is set, all numbers share a single
// Postgres database instead (the per-number directory then only holds
// bookkeeping files).
func OpenSessionStore(ctx context.Context, sessionDir, sharedDSN, phone string) (*sqlstore.Container, error) {
	dbLog := waLog.Stdout("DB-"+phone, "WARN", true)

	if sharedDSN != "" {
		container, err := sqlstore.New(ctx, "postgres", sharedDSN, dbLog)
		if err != nil {
			return nil, fmt.Errorf("open shared session store: %w", err)
		}
		return container, nil
	}

	dbPath := filepath.Join(sessionDir, "session.db")
	dbURI := fmt.Sprintf("file:%s?_foreign_keys=on", dbPath)
	container, err := sqlstore.New(ctx, "sqlite3", dbURI, dbLog)
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", dbPath, err)
	}
	return container, nil
}

// CredentialFile returns the path of the serialized credential file for a
// session directory, as used by the onboarding upload step. Only meaningful
// for the sqlite backend.
func CredentialFile(sessionDir string) string {
	return filepath.Join(sessionDir, "session.db")
}
