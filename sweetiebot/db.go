package sweetiebot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// ErrDuplicateEntry - Error 1062: Duplicate entry for unique key
var ErrDuplicateEntry = errors.New("Error 1062: Duplicate entry for unique key")

var errUnknownDriver = errors.New("unknown database driver, use mysql or sqlite3")

// DBReconnectTimeout is the minimum time between reconnection attempts
const DBReconnectTimeout = 30 * time.Second

var schemas = map[string][]string{
	"mysql": {
		"CREATE TABLE IF NOT EXISTS violations (" +
			"ID CHAR(36) NOT NULL PRIMARY KEY, " +
			"Guild VARCHAR(20) NOT NULL, " +
			"Channel VARCHAR(20) NOT NULL, " +
			"User VARCHAR(20) NOT NULL, " +
			"Message VARCHAR(20) NOT NULL, " +
			"Rule VARCHAR(32) NOT NULL, " +
			"Detail VARCHAR(255) NOT NULL, " +
			"`Timestamp` DATETIME NOT NULL, " +
			"INDEX violations_guild_time (Guild, `Timestamp`))",
	},
	"sqlite3": {
		"CREATE TABLE IF NOT EXISTS violations (" +
			"ID TEXT NOT NULL PRIMARY KEY, " +
			"Guild TEXT NOT NULL, " +
			"Channel TEXT NOT NULL, " +
			"User TEXT NOT NULL, " +
			"Message TEXT NOT NULL, " +
			"Rule TEXT NOT NULL, " +
			"Detail TEXT NOT NULL, " +
			"Timestamp DATETIME NOT NULL)",
		"CREATE INDEX IF NOT EXISTS violations_guild_time ON violations (Guild, Timestamp)",
	},
}

// ViolationRecord is one row of the moderation audit log
type ViolationRecord struct {
	ID        string
	Guild     string
	Channel   string
	User      string
	Message   string
	Rule      string
	Detail    string
	Timestamp time.Time
}

// BotDB contains the database connection and all database Prepared statements exposed as functions
type BotDB struct {
	db                   *sql.DB
	Status               AtomicBool
	lastattempt          time.Time
	log                  *slog.Logger
	driver               string
	statuslock           sync.Mutex
	sqlAddViolation      *sql.Stmt
	sqlGetViolations     *sql.Stmt
	sqlGetViolationsUser *sql.Stmt
	sqlCountViolations   *sql.Stmt
}

// DBLoad opens the audit log database, creates the schema if needed and prepares all statements
func DBLoad(log *slog.Logger, driver string, dsn string) (*BotDB, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, errUnknownDriver
	}
	if driver == "mysql" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parsing mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	}
	cdb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err = cdb.Ping(); err != nil {
		return newBotDB(log, driver, cdb), err
	}
	if err = createSchema(cdb, driver); err != nil {
		return newBotDB(log, driver, cdb), err
	}
	return NewBotDB(log, driver, cdb)
}

// NewBotDB wraps an open connection whose schema already exists and prepares all statements
func NewBotDB(log *slog.Logger, driver string, cdb *sql.DB) (*BotDB, error) {
	db := newBotDB(log, driver, cdb)
	if err := db.LoadStatements(); err != nil {
		return db, err
	}
	db.Status.Set(true)
	return db, nil
}

func newBotDB(log *slog.Logger, driver string, cdb *sql.DB) *BotDB {
	if driver == "sqlite3" {
		cdb.SetMaxOpenConns(1) // sqlite only allows one writer
	} else {
		cdb.SetMaxOpenConns(20)
	}
	return &BotDB{
		db:          cdb,
		lastattempt: time.Now().UTC(),
		log:         log.With("component", "db"),
		driver:      driver,
	}
}

func createSchema(cdb *sql.DB, driver string) error {
	for _, s := range schemas[driver] {
		if _, err := cdb.Exec(s); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Close destroys the database connection
func (db *BotDB) Close() {
	if db != nil && db.db != nil {
		db.db.Close()
		db.db = nil
	}
}

func (db *BotDB) standardErr(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrDuplicateEntry
	}
	return err
}

// Prepare a sql statement and logs an error if it fails
func (db *BotDB) Prepare(s string) (*sql.Stmt, error) {
	statement, err := db.db.Prepare(s)
	if err != nil {
		db.log.Error("preparing statement failed", "query", s, "err", err)
	}
	return statement, err
}

// LoadStatements loads all Prepared statements
func (db *BotDB) LoadStatements() error {
	var errs []error
	prepare := func(s string) *sql.Stmt {
		stmt, err := db.Prepare(s)
		errs = append(errs, err)
		return stmt
	}
	db.sqlAddViolation = prepare("INSERT INTO violations (ID, Guild, Channel, User, Message, Rule, Detail, Timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	db.sqlGetViolations = prepare("SELECT ID, Guild, Channel, User, Message, Rule, Detail, Timestamp FROM violations WHERE Guild = ? ORDER BY Timestamp DESC LIMIT ?")
	db.sqlGetViolationsUser = prepare("SELECT ID, Guild, Channel, User, Message, Rule, Detail, Timestamp FROM violations WHERE Guild = ? AND User = ? ORDER BY Timestamp DESC LIMIT ?")
	db.sqlCountViolations = prepare("SELECT COUNT(*) FROM violations WHERE Guild = ? AND User = ? AND Timestamp > ?")
	return errors.Join(errs...)
}

// CheckStatus returns true if the database is usable, attempting to reconnect at most once every DBReconnectTimeout
func (db *BotDB) CheckStatus() bool {
	if db == nil || db.db == nil {
		return false
	}
	if db.Status.Get() {
		return true
	}
	if !db.statuslock.TryLock() { // someone else is already reconnecting
		return false
	}
	defer db.statuslock.Unlock()

	if db.Status.Get() {
		return true
	}
	if time.Since(db.lastattempt) < DBReconnectTimeout {
		return false
	}
	db.log.Warn("database failure detected, attempting to reconnect")
	db.lastattempt = time.Now().UTC()
	if err := db.db.Ping(); err != nil {
		db.log.Error("reconnection failed", "retry", TimeDiff(DBReconnectTimeout), "err", err)
		return false
	}
	if err := db.LoadStatements(); err != nil {
		db.log.Error("reloading statements failed", "err", err)
	}
	db.Status.Set(true)
	db.log.Info("reconnection succeeded")
	return true
}

// CheckError logs any unknown errors and pings the database to check if it's still there
func (db *BotDB) CheckError(name string, err error) error {
	err = db.standardErr(err)
	if err != nil && err != sql.ErrNoRows && err != sql.ErrTxDone && err != ErrDuplicateEntry {
		if db.Status.Get() {
			db.log.Error("query failed", "query", name, "err", err)
		}
		if db.db.Ping() != nil {
			db.Status.Set(false)
		}
	}
	return err
}

// AddViolation records an enforced rule violation. The ID and timestamp are filled in if empty.
func (db *BotDB) AddViolation(ctx context.Context, v *ViolationRecord) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}
	_, err := db.sqlAddViolation.ExecContext(ctx, v.ID, v.Guild, v.Channel, v.User, v.Message, v.Rule, v.Detail, v.Timestamp)
	return db.CheckError("AddViolation", err)
}

// GetViolations returns the most recent violations in a guild, optionally filtered to one user
func (db *BotDB) GetViolations(ctx context.Context, guild string, user string, maxresults int) ([]ViolationRecord, error) {
	var q *sql.Rows
	var err error
	if len(user) > 0 {
		q, err = db.sqlGetViolationsUser.QueryContext(ctx, guild, user, maxresults)
	} else {
		q, err = db.sqlGetViolations.QueryContext(ctx, guild, maxresults)
	}
	if db.CheckError("GetViolations", err) != nil {
		return nil, err
	}
	defer q.Close()
	r := make([]ViolationRecord, 0, maxresults)
	for q.Next() {
		v := ViolationRecord{}
		if err := q.Scan(&v.ID, &v.Guild, &v.Channel, &v.User, &v.Message, &v.Rule, &v.Detail, &v.Timestamp); err != nil {
			db.log.Error("row scan failed", "err", err)
			continue
		}
		r = append(r, v)
	}
	return r, db.CheckError("GetViolations", q.Err())
}

// CountViolations returns how many violations a user has in a guild since the given time
func (db *BotDB) CountViolations(ctx context.Context, guild string, user string, since time.Time) (int, error) {
	var i int
	err := db.sqlCountViolations.QueryRowContext(ctx, guild, user, since).Scan(&i)
	return i, db.CheckError("CountViolations", err)
}
