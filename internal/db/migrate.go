package db

import (
	"context"
	"fmt"
)

// Migrate creates the session tables and indexes for the given table
// name prefix. The DDL is shared between dialects except for the blob
// column type.
func Migrate(ctx context.Context, db *DB, driver, tableName string) error {
	if tableName == "" {
		return fmt.Errorf("db: table name must not be empty")
	}

	blobType := "BLOB"
	if driver == "postgres" {
		blobType = "BYTEA"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
			SESSION_ID1 BIGINT NOT NULL,
			SESSION_ID2 BIGINT NOT NULL,
			CREATION_TIME BIGINT NOT NULL,
			LAST_ACCESS_TIME BIGINT NOT NULL,
			MAX_INACTIVE_INTERVAL INTEGER NOT NULL,
			EXPIRY_TIME BIGINT NOT NULL,
			PRINCIPAL_NAME TEXT,
			CONSTRAINT %[1]s_PK PRIMARY KEY (SESSION_ID1, SESSION_ID2)
		)`, tableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_EXPIRY_IX ON %[1]s (EXPIRY_TIME)`, tableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_PRINCIPAL_IX ON %[1]s (PRINCIPAL_NAME)`, tableName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s_ATTRIBUTES (
			SESSION_ID1 BIGINT NOT NULL,
			SESSION_ID2 BIGINT NOT NULL,
			ATTRIBUTE_NAME TEXT NOT NULL,
			ATTRIBUTE_BYTES %[2]s NOT NULL,
			CONSTRAINT %[1]s_ATTRIBUTES_PK PRIMARY KEY (SESSION_ID1, SESSION_ID2, ATTRIBUTE_NAME),
			CONSTRAINT %[1]s_ATTRIBUTES_FK FOREIGN KEY (SESSION_ID1, SESSION_ID2)
				REFERENCES %[1]s (SESSION_ID1, SESSION_ID2) ON DELETE CASCADE ON UPDATE CASCADE
		)`, tableName, blobType),
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: migration failed: %w", err)
		}
	}
	return nil
}
