package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// Dialect identifica o banco em uso.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func init() {
	// O driver "sqlite" não consta da tabela de bindvars do sqlx.
	sqlx.BindDriver(string(SQLite), sqlx.QUESTION)
}

// ParseDialect valida o nome do driver configurado.
func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(driver))) {
	case Postgres:
		return Postgres, nil
	case SQLite:
		return SQLite, nil
	default:
		return "", fmt.Errorf("driver de banco não suportado: %q", driver)
	}
}

func (d Dialect) migrationDialect() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "postgres"
}

// forUpdate bloqueia as linhas lidas até o fim da transação. No SQLite
// as transações já são serializadas por uma única conexão.
func (d Dialect) forUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// DB representa a conexão com o banco do ledger.
type DB struct {
	*sqlx.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewDB conecta-se ao banco e executa as migrações.
func NewDB(driver, dataSourceName string, logger *zap.Logger) (*DB, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(string(dialect), dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao banco de dados: %w", err)
	}

	if dialect == SQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("falha ao configurar sqlite: %w", err)
		}
	}
	logger.Info("conexão com o banco estabelecida", zap.String("dialect", string(dialect)))

	if err := runMigrations(db.DB, dialect, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("falha ao executar migrações: %w", err)
	}

	return &DB{DB: db, dialect: dialect, logger: logger}, nil
}

// Dialect retorna o dialeto da conexão.
func (d *DB) Dialect() Dialect { return d.dialect }

// runMigrations executa as migrações embutidas usando sql-migrate.
func runMigrations(db *sql.DB, dialect Dialect, logger *zap.Logger) error {
	migrations := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationsFS,
		Root:       "migrations/" + string(dialect),
	}

	n, err := migrate.Exec(db, dialect.migrationDialect(), migrations, migrate.Up)
	if err != nil {
		return fmt.Errorf("erro ao aplicar migrações: %w", err)
	}
	if n > 0 {
		logger.Info("migrações aplicadas", zap.Int("count", n))
	} else {
		logger.Debug("nenhuma migração nova para aplicar")
	}
	return nil
}

// InTx executa fn em uma transação de escrita. Qualquer erro de fn
// desfaz tudo; nada fica parcialmente aplicado.
func (d *DB) InTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("falha ao iniciar transação: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, dialect: d.dialect}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			d.logger.Error("falha ao desfazer transação", zap.Error(rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("falha ao confirmar transação: %w", err)
	}
	return nil
}

// IsUniqueViolation reconhece violação de chave única nos dois drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
