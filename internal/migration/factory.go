package migration

import (
	"fmt"

	"github.com/BaSui01/blockflow/config"
)

// versionTable records the applied schema version.
const versionTable = "schema_migrations"

// NewMigratorFromDatabaseConfig creates a migrator for the database the
// workflow store is configured against. For sqlite, Name is the file path.
func NewMigratorFromDatabaseConfig(dbCfg config.DatabaseConfig) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}

	host, port, user, password, sslMode := dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.SSLMode
	switch dbType {
	case DatabaseTypeMySQL:
		sslMode = ""
	case DatabaseTypeSQLite:
		host, port, user, password, sslMode = "", 0, "", "", ""
	}
	return newMigrator(dbType, BuildDatabaseURL(dbType, host, port, dbCfg.Name, user, password, sslMode))
}

// NewMigratorFromURL creates a migrator from a --db-type/--db-url pair.
func NewMigratorFromURL(dbType, dbURL string) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}
	return newMigrator(dt, dbURL)
}

func newMigrator(dbType DatabaseType, dbURL string) (*DefaultMigrator, error) {
	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  dbURL,
		TableName:    versionTable,
	})
}
