package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/samber/lo"
)

// Dialect is the database/sql driver name of a supported store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "pgx"
)

// Options configures Open. For SQLite, DSN is a file path.
type Options struct {
	Driver          Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          *slog.Logger
}

// Database provides high-level helpers around a relational connection pool.
type Database struct {
	db      *sqlx.DB
	dialect Dialect
	sb      squirrel.StatementBuilderType
	now     func() time.Time
	log     *slog.Logger
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string) (*Database, error) {
	return Open(context.Background(), Options{Driver: DialectSQLite, DSN: dbPath})
}

// Open connects to the store described by opts and applies schema migrations.
func Open(ctx context.Context, opts Options) (*Database, error) {
	dialect := opts.Driver
	if dialect == "" {
		dialect = DialectSQLite
	}

	var dsn string
	switch dialect {
	case DialectSQLite:
		// Ensure directory exists so first-run succeeds.
		if dir := filepath.Dir(opts.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		// Enable busy_timeout and foreign keys; cascades depend on the latter.
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", opts.DSN)
	case DialectPostgres:
		dsn = opts.DSN
	default:
		return nil, fmt.Errorf("unsupported driver %q", dialect)
	}

	db, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if err := applyMigrations(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Database{
		db:      db,
		dialect: dialect,
		sb:      statementBuilder(dialect),
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger,
	}, nil
}

// Close closes the connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks that the store is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// SetClock replaces the time source used for timestamps and overdue checks.
func (d *Database) SetClock(now func() time.Time) {
	d.now = now
}

// Now is the store's notion of the current time.
func (d *Database) Now() time.Time {
	return d.now()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS authors (
		id %PK%,
		name VARCHAR(255) NOT NULL,
		biography TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS books (
		id %PK%,
		title VARCHAR(150) NOT NULL,
		isbn VARCHAR(15) NOT NULL,
		category VARCHAR(100) NOT NULL,
		availability_status BOOLEAN NOT NULL DEFAULT TRUE,
		publication_date DATE NOT NULL,
		total_copies INTEGER NOT NULL DEFAULT 1,
		available_copies INTEGER NOT NULL DEFAULT 1,
		author_id %FK% NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		created_at %TS% NOT NULL,
		updated_at %TS% NOT NULL,
		CONSTRAINT books_isbn_key UNIQUE (isbn)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_books_author_id ON books(author_id);`,
	`CREATE TABLE IF NOT EXISTS members (
		id %PK%,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(254) NOT NULL,
		membership_date DATE NOT NULL,
		status VARCHAR(10) NOT NULL DEFAULT 'ACTIVE',
		created_at %TS% NOT NULL,
		updated_at %TS% NOT NULL,
		CONSTRAINT members_email_key UNIQUE (email)
	);`,
	`CREATE TABLE IF NOT EXISTS borrow_records (
		id %PK%,
		book_id %FK% NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		member_id %FK% NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		borrow_date %TS% NOT NULL,
		due_date %TS% NOT NULL,
		return_date %TS%,
		status VARCHAR(10) NOT NULL DEFAULT 'BORROWED',
		created_at %TS% NOT NULL,
		updated_at %TS% NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_book_id ON borrow_records(book_id);`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_member_id ON borrow_records(member_id);`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_borrow_date ON borrow_records(borrow_date);`,
	`CREATE TABLE IF NOT EXISTS users (
		id %PK%,
		username VARCHAR(150) NOT NULL,
		password_hash TEXT NOT NULL,
		role VARCHAR(10) NOT NULL,
		created_at %TS% NOT NULL,
		CONSTRAINT users_username_key UNIQUE (username)
	);`,
}

var columnTypes = map[Dialect]*strings.Replacer{
	DialectSQLite: strings.NewReplacer(
		"%PK%", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"%FK%", "INTEGER",
		"%TS%", "DATETIME",
	),
	DialectPostgres: strings.NewReplacer(
		"%PK%", "BIGSERIAL PRIMARY KEY",
		"%FK%", "BIGINT",
		"%TS%", "TIMESTAMPTZ",
	),
}

// statementBuilder returns a squirrel builder using the bind style of dialect.
func statementBuilder(dialect Dialect) squirrel.StatementBuilderType {
	if dialect == DialectPostgres {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

// schemaFor renders the migration statements with the column types of dialect.
func schemaFor(dialect Dialect) []string {
	types := columnTypes[dialect]
	return lo.Map(schema, func(stmt string, _ int) string { return types.Replace(stmt) })
}

func applyMigrations(ctx context.Context, db *sqlx.DB, dialect Dialect) error {
	if dialect == DialectSQLite {
		// WAL improves write concurrency.
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key VARCHAR(64) PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("create meta: %w", err)
	}

	var current int
	_ = db.QueryRowxContext(ctx, `SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schemaFor(dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	setVersion := tx.Rebind(`INSERT INTO meta(key,value) VALUES('schema_version',?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value;`)
	if _, err := tx.ExecContext(ctx, setVersion, strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Query helpers
// ---------------------------------------------------------------------------

func (d *Database) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			d.log.ErrorContext(ctx, "rollback failed", "error", err.Error())
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func selectRows(ctx context.Context, q sqlx.QueryerContext, dest any, sel squirrel.SelectBuilder) error {
	query, args, err := sel.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

func (d *Database) getByID(ctx context.Context, q sqlx.QueryerContext, table string, res Resource, id int64, dest any) error {
	query, args, err := d.sb.Select("*").From(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	err = sqlx.GetContext(ctx, q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Resource: res, ID: id}
	}
	if err != nil {
		return fmt.Errorf("get %s %d: %w", res, id, err)
	}
	return nil
}

// requireRef fails with a NotFoundError naming field when the referenced row
// does not exist.
func (d *Database) requireRef(ctx context.Context, q sqlx.QueryerContext, res Resource, table, field string, id int64) error {
	var exists bool
	query := d.db.Rebind(`SELECT EXISTS(SELECT 1 FROM ` + table + ` WHERE id=?)`)
	if err := q.QueryRowxContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("check %s %d: %w", res, id, err)
	}
	if !exists {
		return &NotFoundError{Resource: res, ID: id, Field: field}
	}
	return nil
}

const msgInvalidChoice = "Select a valid choice. That choice is not one of the available choices."

// requireChoice reports a filter on a row that does not exist as a validation
// error on the filter parameter.
func (d *Database) requireChoice(ctx context.Context, verr *ValidationError, res Resource, table, param string, id *int64) error {
	if id == nil {
		return nil
	}
	err := d.requireRef(ctx, d.db, res, table, param, *id)
	var nf *NotFoundError
	if errors.As(err, &nf) {
		verr.Add(param, msgInvalidChoice)
		return nil
	}
	return err
}

func (d *Database) insert(ctx context.Context, q sqlx.QueryerContext, table string, res Resource, values map[string]any) (int64, error) {
	query, args, err := d.sb.Insert(table).SetMap(values).Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := q.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, writeError(res, "insert", err)
	}
	return id, nil
}

func (d *Database) update(ctx context.Context, e sqlx.ExecerContext, table string, res Resource, id int64, values map[string]any) error {
	query, args, err := d.sb.Update(table).SetMap(values).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return writeError(res, "update", err)
	}
	return requireAffected(result, res, id)
}

func (d *Database) deleteByID(ctx context.Context, table string, res Resource, id int64) error {
	query, args, err := d.sb.Delete(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", res, id, err)
	}
	return requireAffected(result, res, id)
}

func requireAffected(result sql.Result, res Resource, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &NotFoundError{Resource: res, ID: id}
	}
	return nil
}

// byIDs loads the rows of table whose id is in ids, keyed by id.
func byIDs[T any](ctx context.Context, d *Database, table string, ids []int64, key func(T) int64) (map[int64]T, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return map[int64]T{}, nil
	}

	var rows []T
	sel := d.sb.Select("*").From(table).Where(squirrel.Eq{"id": ids})
	if err := selectRows(ctx, d.db, &rows, sel); err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return lo.KeyBy(rows, key), nil
}

// countBy counts rows of table per value of column, restricted to ids.
func (d *Database) countBy(ctx context.Context, table, column string, ids []int64, mods ...QueryMod) (map[int64]int, error) {
	counts := make(map[int64]int, len(ids))
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return counts, nil
	}

	sel := d.sb.Select(column+" AS id", "COUNT(*) AS n").
		From(table).
		Where(squirrel.Eq{column: ids}).
		GroupBy(column)
	sel = applyMods(sel, mods)

	var rows []struct {
		ID int64 `db:"id"`
		N  int   `db:"n"`
	}
	if err := selectRows(ctx, d.db, &rows, sel); err != nil {
		return nil, fmt.Errorf("count %s by %s: %w", table, column, err)
	}
	for _, row := range rows {
		counts[row.ID] = row.N
	}
	return counts, nil
}

var uniqueConstraintColumns = map[string]string{
	"books_isbn_key":     "isbn",
	"members_email_key":  "email",
	"users_username_key": "username",
}

// uniqueViolation reports the column of a unique constraint failure.
func uniqueViolation(err error) (string, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		// "UNIQUE constraint failed: books.isbn"
		msg := sqliteErr.Error()
		return msg[strings.LastIndex(msg, ".")+1:], true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		col, ok := uniqueConstraintColumns[pgErr.ConstraintName]
		return col, ok
	}
	return "", false
}

func writeError(res Resource, op string, err error) error {
	if col, ok := uniqueViolation(err); ok {
		return fieldError(col, fmt.Sprintf("%s with this %s already exists.", res, col))
	}
	return fmt.Errorf("%s %s: %w", op, res, err)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// ---------------------------------------------------------------------------
// Authors
// ---------------------------------------------------------------------------

func (d *Database) ListAuthors(ctx context.Context, aq AuthorQuery) ([]Author, error) {
	sel := applyMods(d.sb.Select("authors.*").From("authors"), aq.mods()).OrderBy("authors.id")

	authors := []Author{}
	if err := selectRows(ctx, d.db, &authors, sel); err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

func (d *Database) GetAuthor(ctx context.Context, id int64) (*Author, error) {
	var a Author
	if err := d.getByID(ctx, d.db, "authors", ResourceAuthor, id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func authorValues(a *Author) map[string]any {
	return map[string]any{
		"name":      a.Name,
		"biography": a.Biography,
	}
}

func (d *Database) InsertAuthor(ctx context.Context, a *Author) error {
	id, err := d.insert(ctx, d.db, "authors", ResourceAuthor, authorValues(a))
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (d *Database) UpdateAuthor(ctx context.Context, a *Author) error {
	return d.update(ctx, d.db, "authors", ResourceAuthor, a.ID, authorValues(a))
}

// DeleteAuthor removes the author together with its books and their borrow records.
func (d *Database) DeleteAuthor(ctx context.Context, id int64) error {
	return d.deleteByID(ctx, "authors", ResourceAuthor, id)
}

func (d *Database) AuthorsByID(ctx context.Context, ids []int64) (map[int64]Author, error) {
	return byIDs(ctx, d, "authors", ids, func(a Author) int64 { return a.ID })
}

// BookCounts returns the number of books per author id.
func (d *Database) BookCounts(ctx context.Context, authorIDs []int64) (map[int64]int, error) {
	return d.countBy(ctx, "books", "author_id", authorIDs)
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

func (d *Database) ListBooks(ctx context.Context, bq BookQuery) ([]Book, error) {
	var verr ValidationError
	if err := d.requireChoice(ctx, &verr, ResourceAuthor, "authors", "author", bq.AuthorID); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	sel := applyMods(d.sb.Select("books.*").From("books"), bq.mods()).OrderBy("books.id")

	books := []Book{}
	if err := selectRows(ctx, d.db, &books, sel); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (d *Database) GetBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	if err := d.getByID(ctx, d.db, "books", ResourceBook, id, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func bookValues(b *Book) map[string]any {
	return map[string]any{
		"title":               b.Title,
		"isbn":                b.ISBN,
		"category":            b.Category,
		"availability_status": b.AvailabilityStatus,
		"publication_date":    b.PublicationDate,
		"total_copies":        b.TotalCopies,
		"available_copies":    b.AvailableCopies,
		"author_id":           b.AuthorID,
		"updated_at":          b.UpdatedAt,
	}
}

// InsertBook stores b after checking that its author exists.
func (d *Database) InsertBook(ctx context.Context, b *Book) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := d.requireRef(ctx, tx, ResourceAuthor, "authors", "author", b.AuthorID); err != nil {
			return err
		}

		now := d.now()
		b.CreatedAt, b.UpdatedAt = now, now
		values := bookValues(b)
		values["created_at"] = b.CreatedAt

		id, err := d.insert(ctx, tx, "books", ResourceBook, values)
		if err != nil {
			return err
		}
		b.ID = id
		return nil
	})
}

func (d *Database) UpdateBook(ctx context.Context, b *Book) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := d.requireRef(ctx, tx, ResourceAuthor, "authors", "author", b.AuthorID); err != nil {
			return err
		}
		b.UpdatedAt = d.now()
		return d.update(ctx, tx, "books", ResourceBook, b.ID, bookValues(b))
	})
}

// DeleteBook removes the book and its borrow records.
func (d *Database) DeleteBook(ctx context.Context, id int64) error {
	return d.deleteByID(ctx, "books", ResourceBook, id)
}

func (d *Database) BooksByID(ctx context.Context, ids []int64) (map[int64]Book, error) {
	return byIDs(ctx, d, "books", ids, func(b Book) int64 { return b.ID })
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func (d *Database) ListMembers(ctx context.Context, mq MemberQuery) ([]Member, error) {
	sel := applyMods(d.sb.Select("members.*").From("members"), mq.mods()).OrderBy("members.id")

	members := []Member{}
	if err := selectRows(ctx, d.db, &members, sel); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (d *Database) GetMember(ctx context.Context, id int64) (*Member, error) {
	var m Member
	if err := d.getByID(ctx, d.db, "members", ResourceMember, id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func memberValues(m *Member) map[string]any {
	return map[string]any{
		"name":            m.Name,
		"email":           m.Email,
		"membership_date": m.MembershipDate,
		"status":          string(m.Status),
		"updated_at":      m.UpdatedAt,
	}
}

func (d *Database) InsertMember(ctx context.Context, m *Member) error {
	now := d.now()
	m.CreatedAt, m.UpdatedAt = now, now
	values := memberValues(m)
	values["created_at"] = m.CreatedAt

	id, err := d.insert(ctx, d.db, "members", ResourceMember, values)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

func (d *Database) UpdateMember(ctx context.Context, m *Member) error {
	m.UpdatedAt = d.now()
	return d.update(ctx, d.db, "members", ResourceMember, m.ID, memberValues(m))
}

// DeleteMember removes the member and its borrow records.
func (d *Database) DeleteMember(ctx context.Context, id int64) error {
	return d.deleteByID(ctx, "members", ResourceMember, id)
}

func (d *Database) MembersByID(ctx context.Context, ids []int64) (map[int64]Member, error) {
	return byIDs(ctx, d, "members", ids, func(m Member) int64 { return m.ID })
}

// BorrowedCounts returns, per member id, the number of records still in
// BORROWED status.
func (d *Database) BorrowedCounts(ctx context.Context, memberIDs []int64) (map[int64]int, error) {
	return d.countBy(ctx, "borrow_records", "member_id", memberIDs, eq("status", string(StatusBorrowed)))
}

// ---------------------------------------------------------------------------
// Borrow records
// ---------------------------------------------------------------------------

func (d *Database) ListBorrowRecords(ctx context.Context, rq BorrowRecordQuery) ([]BorrowRecord, error) {
	var verr ValidationError
	if err := d.requireChoice(ctx, &verr, ResourceBook, "books", "book", rq.BookID); err != nil {
		return nil, fmt.Errorf("list borrow records: %w", err)
	}
	if err := d.requireChoice(ctx, &verr, ResourceMember, "members", "member", rq.MemberID); err != nil {
		return nil, fmt.Errorf("list borrow records: %w", err)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	sel := applyMods(d.sb.Select("borrow_records.*").From("borrow_records"), rq.mods()).
		OrderBy("borrow_records.borrow_date DESC", "borrow_records.id DESC")

	records := []BorrowRecord{}
	if err := selectRows(ctx, d.db, &records, sel); err != nil {
		return nil, fmt.Errorf("list borrow records: %w", err)
	}
	return records, nil
}

func (d *Database) GetBorrowRecord(ctx context.Context, id int64) (*BorrowRecord, error) {
	var r BorrowRecord
	if err := d.getByID(ctx, d.db, "borrow_records", ResourceBorrowRecord, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func borrowRecordValues(r *BorrowRecord) map[string]any {
	return map[string]any{
		"book_id":     r.BookID,
		"member_id":   r.MemberID,
		"borrow_date": r.BorrowDate.UTC(),
		"due_date":    r.DueDate.UTC(),
		"return_date": utcPtr(r.ReturnDate),
		"status":      string(r.Status),
		"updated_at":  r.UpdatedAt,
	}
}

func (d *Database) checkBorrowRefs(ctx context.Context, tx *sqlx.Tx, r *BorrowRecord) error {
	if err := d.requireRef(ctx, tx, ResourceBook, "books", "book", r.BookID); err != nil {
		return err
	}
	return d.requireRef(ctx, tx, ResourceMember, "members", "member", r.MemberID)
}

// InsertBorrowRecord stores r after checking that its book and member exist.
func (d *Database) InsertBorrowRecord(ctx context.Context, r *BorrowRecord) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := d.checkBorrowRefs(ctx, tx, r); err != nil {
			return err
		}

		now := d.now()
		r.CreatedAt, r.UpdatedAt = now, now
		values := borrowRecordValues(r)
		values["created_at"] = r.CreatedAt

		id, err := d.insert(ctx, tx, "borrow_records", ResourceBorrowRecord, values)
		if err != nil {
			return err
		}
		r.ID = id
		return nil
	})
}

func (d *Database) UpdateBorrowRecord(ctx context.Context, r *BorrowRecord) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := d.checkBorrowRefs(ctx, tx, r); err != nil {
			return err
		}
		r.UpdatedAt = d.now()
		return d.update(ctx, tx, "borrow_records", ResourceBorrowRecord, r.ID, borrowRecordValues(r))
	})
}

func (d *Database) DeleteBorrowRecord(ctx context.Context, id int64) error {
	return d.deleteByID(ctx, "borrow_records", ResourceBorrowRecord, id)
}

// Dialect reports which store the database talks to.
func (d *Database) Dialect() Dialect {
	return d.dialect
}
