package library

import (
	"context"

	"github.com/samber/lo"
)

// LibraryManager is the resource layer over the Database: every operation
// checks the caller, runs the write or query, and returns the response shape.
type LibraryManager struct {
	db *Database
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{db: db}, nil
}

// NewManager wraps an already opened database.
func NewManager(db *Database) *LibraryManager {
	return &LibraryManager{db: db}
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Database exposes the store, e.g. for user administration.
func (lm *LibraryManager) Database() *Database { return lm.db }

func authorIDs(books []Book) []int64 {
	return lo.Map(books, func(b Book, _ int) int64 { return b.AuthorID })
}

// ------------------ Authors ------------------

func (lm *LibraryManager) ListAuthors(ctx context.Context, caller Caller, aq AuthorQuery) ([]AuthorView, error) {
	if err := Authorize(caller, ResourceAuthor, OpList); err != nil {
		return nil, err
	}

	authors, err := lm.db.ListAuthors(ctx, aq)
	if err != nil {
		return nil, err
	}
	counts, err := lm.db.BookCounts(ctx, lo.Map(authors, func(a Author, _ int) int64 { return a.ID }))
	if err != nil {
		return nil, err
	}

	return lo.Map(authors, func(a Author, _ int) AuthorView {
		return ProjectAuthor(a, counts[a.ID])
	}), nil
}

func (lm *LibraryManager) GetAuthor(ctx context.Context, caller Caller, id int64) (AuthorView, error) {
	if err := Authorize(caller, ResourceAuthor, OpRetrieve); err != nil {
		return AuthorView{}, err
	}

	a, err := lm.db.GetAuthor(ctx, id)
	if err != nil {
		return AuthorView{}, err
	}
	return lm.authorView(ctx, *a)
}

func (lm *LibraryManager) CreateAuthor(ctx context.Context, caller Caller, in AuthorInput) (AuthorView, error) {
	if err := Authorize(caller, ResourceAuthor, OpCreate); err != nil {
		return AuthorView{}, err
	}

	var (
		a    Author
		verr ValidationError
	)
	in.apply(&a, false, &verr)
	check(a, &verr)
	if err := verr.Err(); err != nil {
		return AuthorView{}, err
	}

	if err := lm.db.InsertAuthor(ctx, &a); err != nil {
		return AuthorView{}, err
	}
	return lm.authorView(ctx, a)
}

func (lm *LibraryManager) UpdateAuthor(ctx context.Context, caller Caller, id int64, in AuthorInput) (AuthorView, error) {
	return lm.updateAuthor(ctx, caller, id, in, OpUpdate)
}

func (lm *LibraryManager) PartialUpdateAuthor(ctx context.Context, caller Caller, id int64, in AuthorInput) (AuthorView, error) {
	return lm.updateAuthor(ctx, caller, id, in, OpPartialUpdate)
}

func (lm *LibraryManager) updateAuthor(ctx context.Context, caller Caller, id int64, in AuthorInput, op Operation) (AuthorView, error) {
	if err := Authorize(caller, ResourceAuthor, op); err != nil {
		return AuthorView{}, err
	}

	a, err := lm.db.GetAuthor(ctx, id)
	if err != nil {
		return AuthorView{}, err
	}

	var verr ValidationError
	in.apply(a, op == OpPartialUpdate, &verr)
	check(*a, &verr)
	if err := verr.Err(); err != nil {
		return AuthorView{}, err
	}

	if err := lm.db.UpdateAuthor(ctx, a); err != nil {
		return AuthorView{}, err
	}
	return lm.authorView(ctx, *a)
}

// DeleteAuthor also deletes the author's books.
func (lm *LibraryManager) DeleteAuthor(ctx context.Context, caller Caller, id int64) error {
	if err := Authorize(caller, ResourceAuthor, OpDelete); err != nil {
		return err
	}
	return lm.db.DeleteAuthor(ctx, id)
}

func (lm *LibraryManager) authorView(ctx context.Context, a Author) (AuthorView, error) {
	counts, err := lm.db.BookCounts(ctx, []int64{a.ID})
	if err != nil {
		return AuthorView{}, err
	}
	return ProjectAuthor(a, counts[a.ID]), nil
}

// ------------------ Books ------------------

func defaultBook() Book {
	return Book{AvailabilityStatus: true, TotalCopies: 1, AvailableCopies: 1}
}

// ListBooks returns the compact list shape.
func (lm *LibraryManager) ListBooks(ctx context.Context, caller Caller, bq BookQuery) ([]BookListView, error) {
	if err := Authorize(caller, ResourceBook, OpList); err != nil {
		return nil, err
	}

	books, err := lm.db.ListBooks(ctx, bq)
	if err != nil {
		return nil, err
	}
	authors, err := lm.db.AuthorsByID(ctx, authorIDs(books))
	if err != nil {
		return nil, err
	}

	return lo.Map(books, func(b Book, _ int) BookListView {
		return ProjectBookListItem(b, authors[b.AuthorID])
	}), nil
}

func (lm *LibraryManager) GetBook(ctx context.Context, caller Caller, id int64) (BookDetailView, error) {
	if err := Authorize(caller, ResourceBook, OpRetrieve); err != nil {
		return BookDetailView{}, err
	}

	b, err := lm.db.GetBook(ctx, id)
	if err != nil {
		return BookDetailView{}, err
	}
	return lm.bookView(ctx, *b)
}

func (lm *LibraryManager) CreateBook(ctx context.Context, caller Caller, in BookInput) (BookDetailView, error) {
	if err := Authorize(caller, ResourceBook, OpCreate); err != nil {
		return BookDetailView{}, err
	}

	var verr ValidationError
	b := defaultBook()
	in.apply(&b, false, &verr)
	check(b, &verr)
	if err := verr.Err(); err != nil {
		return BookDetailView{}, err
	}

	if err := lm.db.InsertBook(ctx, &b); err != nil {
		return BookDetailView{}, err
	}
	return lm.bookView(ctx, b)
}

func (lm *LibraryManager) UpdateBook(ctx context.Context, caller Caller, id int64, in BookInput) (BookDetailView, error) {
	return lm.updateBook(ctx, caller, id, in, OpUpdate)
}

func (lm *LibraryManager) PartialUpdateBook(ctx context.Context, caller Caller, id int64, in BookInput) (BookDetailView, error) {
	return lm.updateBook(ctx, caller, id, in, OpPartialUpdate)
}

func (lm *LibraryManager) updateBook(ctx context.Context, caller Caller, id int64, in BookInput, op Operation) (BookDetailView, error) {
	if err := Authorize(caller, ResourceBook, op); err != nil {
		return BookDetailView{}, err
	}

	b, err := lm.db.GetBook(ctx, id)
	if err != nil {
		return BookDetailView{}, err
	}

	var verr ValidationError
	in.apply(b, op == OpPartialUpdate, &verr)
	check(*b, &verr)
	if err := verr.Err(); err != nil {
		return BookDetailView{}, err
	}

	if err := lm.db.UpdateBook(ctx, b); err != nil {
		return BookDetailView{}, err
	}
	return lm.bookView(ctx, *b)
}

// DeleteBook also deletes the book's borrow records.
func (lm *LibraryManager) DeleteBook(ctx context.Context, caller Caller, id int64) error {
	if err := Authorize(caller, ResourceBook, OpDelete); err != nil {
		return err
	}
	return lm.db.DeleteBook(ctx, id)
}

func (lm *LibraryManager) bookView(ctx context.Context, b Book) (BookDetailView, error) {
	authors, err := lm.db.AuthorsByID(ctx, []int64{b.AuthorID})
	if err != nil {
		return BookDetailView{}, err
	}
	return ProjectBookDetail(b, authors[b.AuthorID]), nil
}

// ------------------ Members ------------------

func (lm *LibraryManager) ListMembers(ctx context.Context, caller Caller, mq MemberQuery) ([]MemberView, error) {
	if err := Authorize(caller, ResourceMember, OpList); err != nil {
		return nil, err
	}

	members, err := lm.db.ListMembers(ctx, mq)
	if err != nil {
		return nil, err
	}
	counts, err := lm.db.BorrowedCounts(ctx, lo.Map(members, func(m Member, _ int) int64 { return m.ID }))
	if err != nil {
		return nil, err
	}

	return lo.Map(members, func(m Member, _ int) MemberView {
		return ProjectMember(m, counts[m.ID])
	}), nil
}

func (lm *LibraryManager) GetMember(ctx context.Context, caller Caller, id int64) (MemberView, error) {
	if err := Authorize(caller, ResourceMember, OpRetrieve); err != nil {
		return MemberView{}, err
	}

	m, err := lm.db.GetMember(ctx, id)
	if err != nil {
		return MemberView{}, err
	}
	return lm.memberView(ctx, *m)
}

func (lm *LibraryManager) CreateMember(ctx context.Context, caller Caller, in MemberInput) (MemberView, error) {
	if err := Authorize(caller, ResourceMember, OpCreate); err != nil {
		return MemberView{}, err
	}

	var verr ValidationError
	m := Member{Status: MemberActive, MembershipDate: DateOf(lm.db.Now())}
	in.apply(&m, false, &verr)
	check(m, &verr)
	if err := verr.Err(); err != nil {
		return MemberView{}, err
	}

	if err := lm.db.InsertMember(ctx, &m); err != nil {
		return MemberView{}, err
	}
	return lm.memberView(ctx, m)
}

func (lm *LibraryManager) UpdateMember(ctx context.Context, caller Caller, id int64, in MemberInput) (MemberView, error) {
	return lm.updateMember(ctx, caller, id, in, OpUpdate)
}

func (lm *LibraryManager) PartialUpdateMember(ctx context.Context, caller Caller, id int64, in MemberInput) (MemberView, error) {
	return lm.updateMember(ctx, caller, id, in, OpPartialUpdate)
}

func (lm *LibraryManager) updateMember(ctx context.Context, caller Caller, id int64, in MemberInput, op Operation) (MemberView, error) {
	if err := Authorize(caller, ResourceMember, op); err != nil {
		return MemberView{}, err
	}

	m, err := lm.db.GetMember(ctx, id)
	if err != nil {
		return MemberView{}, err
	}

	var verr ValidationError
	in.apply(m, op == OpPartialUpdate, &verr)
	check(*m, &verr)
	if err := verr.Err(); err != nil {
		return MemberView{}, err
	}

	if err := lm.db.UpdateMember(ctx, m); err != nil {
		return MemberView{}, err
	}
	return lm.memberView(ctx, *m)
}

// DeleteMember also deletes the member's borrow records.
func (lm *LibraryManager) DeleteMember(ctx context.Context, caller Caller, id int64) error {
	if err := Authorize(caller, ResourceMember, OpDelete); err != nil {
		return err
	}
	return lm.db.DeleteMember(ctx, id)
}

func (lm *LibraryManager) memberView(ctx context.Context, m Member) (MemberView, error) {
	counts, err := lm.db.BorrowedCounts(ctx, []int64{m.ID})
	if err != nil {
		return MemberView{}, err
	}
	return ProjectMember(m, counts[m.ID]), nil
}

// ------------------ Borrow records ------------------

func (lm *LibraryManager) ListBorrowRecords(ctx context.Context, caller Caller, rq BorrowRecordQuery) ([]BorrowRecordView, error) {
	if err := Authorize(caller, ResourceBorrowRecord, OpList); err != nil {
		return nil, err
	}

	records, err := lm.db.ListBorrowRecords(ctx, rq)
	if err != nil {
		return nil, err
	}
	return lm.borrowRecordViews(ctx, records)
}

func (lm *LibraryManager) GetBorrowRecord(ctx context.Context, caller Caller, id int64) (BorrowRecordView, error) {
	if err := Authorize(caller, ResourceBorrowRecord, OpRetrieve); err != nil {
		return BorrowRecordView{}, err
	}

	r, err := lm.db.GetBorrowRecord(ctx, id)
	if err != nil {
		return BorrowRecordView{}, err
	}
	return lm.borrowRecordView(ctx, *r)
}

// CreateBorrowRecord stores a lending. Status defaults to BORROWED; copies
// counters on the book are left alone.
func (lm *LibraryManager) CreateBorrowRecord(ctx context.Context, caller Caller, in BorrowRecordInput) (BorrowRecordView, error) {
	if err := Authorize(caller, ResourceBorrowRecord, OpCreate); err != nil {
		return BorrowRecordView{}, err
	}

	var verr ValidationError
	r := BorrowRecord{Status: StatusBorrowed}
	in.apply(&r, false, &verr)
	check(r, &verr)
	if err := verr.Err(); err != nil {
		return BorrowRecordView{}, err
	}

	if err := lm.db.InsertBorrowRecord(ctx, &r); err != nil {
		return BorrowRecordView{}, err
	}
	return lm.borrowRecordView(ctx, r)
}

func (lm *LibraryManager) UpdateBorrowRecord(ctx context.Context, caller Caller, id int64, in BorrowRecordInput) (BorrowRecordView, error) {
	return lm.updateBorrowRecord(ctx, caller, id, in, OpUpdate)
}

func (lm *LibraryManager) PartialUpdateBorrowRecord(ctx context.Context, caller Caller, id int64, in BorrowRecordInput) (BorrowRecordView, error) {
	return lm.updateBorrowRecord(ctx, caller, id, in, OpPartialUpdate)
}

func (lm *LibraryManager) updateBorrowRecord(ctx context.Context, caller Caller, id int64, in BorrowRecordInput, op Operation) (BorrowRecordView, error) {
	if err := Authorize(caller, ResourceBorrowRecord, op); err != nil {
		return BorrowRecordView{}, err
	}

	r, err := lm.db.GetBorrowRecord(ctx, id)
	if err != nil {
		return BorrowRecordView{}, err
	}

	var verr ValidationError
	in.apply(r, op == OpPartialUpdate, &verr)
	check(*r, &verr)
	if err := verr.Err(); err != nil {
		return BorrowRecordView{}, err
	}

	if err := lm.db.UpdateBorrowRecord(ctx, r); err != nil {
		return BorrowRecordView{}, err
	}
	return lm.borrowRecordView(ctx, *r)
}

func (lm *LibraryManager) DeleteBorrowRecord(ctx context.Context, caller Caller, id int64) error {
	if err := Authorize(caller, ResourceBorrowRecord, OpDelete); err != nil {
		return err
	}
	return lm.db.DeleteBorrowRecord(ctx, id)
}

func (lm *LibraryManager) borrowRecordView(ctx context.Context, r BorrowRecord) (BorrowRecordView, error) {
	views, err := lm.borrowRecordViews(ctx, []BorrowRecord{r})
	if err != nil {
		return BorrowRecordView{}, err
	}
	return views[0], nil
}

func (lm *LibraryManager) borrowRecordViews(ctx context.Context, records []BorrowRecord) ([]BorrowRecordView, error) {
	books, err := lm.db.BooksByID(ctx, lo.Map(records, func(r BorrowRecord, _ int) int64 { return r.BookID }))
	if err != nil {
		return nil, err
	}
	members, err := lm.db.MembersByID(ctx, lo.Map(records, func(r BorrowRecord, _ int) int64 { return r.MemberID }))
	if err != nil {
		return nil, err
	}

	now := lm.db.Now()
	return lo.Map(records, func(r BorrowRecord, _ int) BorrowRecordView {
		return ProjectBorrowRecord(r, books[r.BookID], members[r.MemberID], now)
	}), nil
}
