package library

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin  = Caller{Username: "root", Role: RoleAdmin}
	reader = Caller{Username: "alice", Role: RoleUser}
)

func newManager(t *testing.T) *LibraryManager {
	t.Helper()
	dir := t.TempDir()
	mgr, err := NewLibraryManager(filepath.Join(dir, "lib.db"))
	require.NoError(t, err)
	mgr.Database().SetClock(func() time.Time { return testNow })
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var in T
	require.NoError(t, DecodeInput([]byte(body), &in))
	return in
}

func requireFieldError(t *testing.T, err error, field string, msg string) {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields[field], msg, "errors: %v", verr.Fields)
}

func createAuthor(t *testing.T, mgr *LibraryManager, body string) AuthorView {
	t.Helper()
	a, err := mgr.CreateAuthor(context.Background(), admin, decode[AuthorInput](t, body))
	require.NoError(t, err)
	return a
}

func createBook(t *testing.T, mgr *LibraryManager, authorID int64, title, isbn, category string) BookDetailView {
	t.Helper()
	body := `{"title":"` + title + `","isbn":"` + isbn + `","category":"` + category +
		`","publication_date":"2001-02-03","author":` + itoa(authorID) + `}`
	b, err := mgr.CreateBook(context.Background(), admin, decode[BookInput](t, body))
	require.NoError(t, err)
	return b
}

func createMember(t *testing.T, mgr *LibraryManager, name, email string) MemberView {
	t.Helper()
	m, err := mgr.CreateMember(context.Background(), admin, decode[MemberInput](t, `{"name":"`+name+`","email":"`+email+`"}`))
	require.NoError(t, err)
	return m
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ------------------ Authors ------------------

func TestCreateAndGetAuthor(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	created := createAuthor(t, mgr, `{"name":"  Ursula K. Le Guin ","biography":"Earthsea"}`)
	assert.Equal(t, "Ursula K. Le Guin", created.Name)
	require.NotNil(t, created.Biography)
	assert.Equal(t, "Earthsea", *created.Biography)
	assert.Zero(t, created.BooksCount)

	got, err := mgr.GetAuthor(ctx, reader, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestAuthorValidation(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	_, err := mgr.CreateAuthor(ctx, admin, decode[AuthorInput](t, `{}`))
	requireFieldError(t, err, "name", msgRequired)

	_, err = mgr.CreateAuthor(ctx, admin, decode[AuthorInput](t, `{"name":"   "}`))
	requireFieldError(t, err, "name", msgBlank)

	_, err = mgr.CreateAuthor(ctx, admin, decode[AuthorInput](t, `{"name":null}`))
	requireFieldError(t, err, "name", msgNull)

	long := strings.Repeat("x", 256)
	_, err = mgr.CreateAuthor(ctx, admin, decode[AuthorInput](t, `{"name":"`+long+`"}`))
	requireFieldError(t, err, "name", "Ensure this field has no more than 255 characters.")
}

func TestBooksCountTracksLiveBooks(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	a := createAuthor(t, mgr, `{"name":"Tolkien"}`)
	other := createAuthor(t, mgr, `{"name":"Lewis"}`)

	b1 := createBook(t, mgr, a.ID, "The Hobbit", "1", "Fantasy")
	createBook(t, mgr, a.ID, "The Silmarillion", "2", "Fantasy")

	got, err := mgr.GetAuthor(ctx, reader, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.BooksCount)

	require.NoError(t, mgr.DeleteBook(ctx, admin, b1.ID))
	got, err = mgr.GetAuthor(ctx, reader, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.BooksCount)

	list, err := mgr.ListAuthors(ctx, reader, AuthorQuery{})
	require.NoError(t, err)
	counts := lo.SliceToMap(list, func(v AuthorView) (int64, int) { return v.ID, v.BooksCount })
	assert.Equal(t, map[int64]int{a.ID: 1, other.ID: 0}, counts)
}

func TestDeleteAuthorRemovesBooks(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	a := createAuthor(t, mgr, `{"name":"Doomed"}`)
	b := createBook(t, mgr, a.ID, "Gone", "1", "Fiction")

	require.NoError(t, mgr.DeleteAuthor(ctx, admin, a.ID))

	_, err := mgr.GetBook(ctx, reader, b.ID)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, ResourceBook, nf.Resource)
}

func TestSearchAuthors(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	byName := createAuthor(t, mgr, `{"name":"J.R.R. Tolkien"}`)
	byBio := createAuthor(t, mgr, `{"name":"Christopher","biography":"Son of TOLKIEN, editor"}`)
	createAuthor(t, mgr, `{"name":"C.S. Lewis","biography":"Narnia"}`)

	got, err := mgr.ListAuthors(ctx, reader, AuthorQuery{Search: "tolkien"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{byName.ID, byBio.ID}, lo.Map(got, func(a AuthorView, _ int) int64 { return a.ID }))

	got, err = mgr.ListAuthors(ctx, reader, AuthorQuery{Search: "tolkien, editor"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, byBio.ID, got[0].ID)

	got, err = mgr.ListAuthors(ctx, reader, AuthorQuery{Search: "100%"})
	require.NoError(t, err)
	assert.Empty(t, got, "wildcards are matched literally")
}

// ------------------ Books ------------------

func TestCreateBookDefaults(t *testing.T) {
	mgr := newManager(t)
	a := createAuthor(t, mgr, `{"name":"Author"}`)

	b := createBook(t, mgr, a.ID, "Title", "978", "Fiction")
	assert.True(t, b.AvailabilityStatus)
	assert.Equal(t, 1, b.TotalCopies)
	assert.Equal(t, 1, b.AvailableCopies)
	assert.Equal(t, a.ID, b.Author)
	assert.Equal(t, "Author", b.AuthorName)
	assert.Equal(t, "2001-02-03", b.PublicationDate.String())
}

func TestCreateBookValidation(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	_, err := mgr.CreateBook(ctx, admin, decode[BookInput](t, `{}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"title", "isbn", "category", "publication_date", "author"} {
		assert.Equal(t, []string{msgRequired}, verr.Fields[field], field)
	}
	assert.False(t, verr.Has("total_copies"))

	_, err = mgr.CreateBook(ctx, admin, decode[BookInput](t,
		`{"title":"T","isbn":"1234567890123456","category":"C","publication_date":"2001-01-01","author":1}`))
	requireFieldError(t, err, "isbn", "Ensure this field has no more than 15 characters.")
}

func TestCreateBookUnknownAuthor(t *testing.T) {
	mgr := newManager(t)

	_, err := mgr.CreateBook(context.Background(), admin, decode[BookInput](t,
		`{"title":"T","isbn":"1","category":"C","publication_date":"2001-01-01","author":77}`))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "author", nf.Field)
	assert.Equal(t, int64(77), nf.ID)
}

func TestDuplicateISBNThroughManager(t *testing.T) {
	mgr := newManager(t)
	a := createAuthor(t, mgr, `{"name":"Author"}`)
	createBook(t, mgr, a.ID, "One", "dup", "Fiction")

	_, err := mgr.CreateBook(context.Background(), admin, decode[BookInput](t,
		`{"title":"Two","isbn":"dup","category":"C","publication_date":"2001-01-01","author":`+itoa(a.ID)+`}`))
	requireFieldError(t, err, "isbn", "book with this isbn already exists.")
}

func TestBookFilters(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	tolkien := createAuthor(t, mgr, `{"name":"Tolkien"}`)
	lewis := createAuthor(t, mgr, `{"name":"Lewis"}`)

	hobbit := createBook(t, mgr, tolkien.ID, "The Hobbit", "1", "Fiction")
	createBook(t, mgr, tolkien.ID, "Letters", "2", "fiction")
	narnia := createBook(t, mgr, lewis.ID, "Narnia", "3", "Fiction")
	_, err := mgr.PartialUpdateBook(ctx, admin, narnia.ID, decode[BookInput](t, `{"availability_status":false}`))
	require.NoError(t, err)

	ids := func(views []BookListView) []int64 {
		return lo.Map(views, func(v BookListView, _ int) int64 { return v.ID })
	}

	got, err := mgr.ListBooks(ctx, reader, BookQuery{Category: lo.ToPtr("Fiction")})
	require.NoError(t, err)
	assert.Equal(t, []int64{hobbit.ID, narnia.ID}, ids(got), "category match is exact and case-sensitive")

	got, err = mgr.ListBooks(ctx, reader, BookQuery{Category: lo.ToPtr("Fiction"), Available: lo.ToPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, []int64{hobbit.ID}, ids(got))

	got, err = mgr.ListBooks(ctx, reader, BookQuery{AuthorID: &lewis.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{narnia.ID}, ids(got))
	assert.Equal(t, "Lewis", got[0].AuthorName)

	got, err = mgr.ListBooks(ctx, reader, BookQuery{Search: "tolkien hobbit"})
	require.NoError(t, err)
	assert.Equal(t, []int64{hobbit.ID}, ids(got), "every term must match some field")

	got, err = mgr.ListBooks(ctx, reader, BookQuery{Search: "FICTION", AuthorID: &tolkien.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2, "search is case-insensitive, filters still apply")
}

func TestUpdateBookFullRequiresFields(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	a := createAuthor(t, mgr, `{"name":"Author"}`)
	b := createBook(t, mgr, a.ID, "Title", "1", "Fiction")

	_, err := mgr.UpdateBook(ctx, admin, b.ID, decode[BookInput](t, `{"title":"Only title"}`))
	requireFieldError(t, err, "isbn", msgRequired)

	patched, err := mgr.PartialUpdateBook(ctx, admin, b.ID, decode[BookInput](t, `{"title":"Only title"}`))
	require.NoError(t, err)
	assert.Equal(t, "Only title", patched.Title)
	assert.Equal(t, "1", patched.ISBN)

	full, err := mgr.UpdateBook(ctx, admin, b.ID, decode[BookInput](t,
		`{"title":"New","isbn":"2","category":"Drama","publication_date":"1999-12-31","author":`+itoa(a.ID)+`,"total_copies":3}`))
	require.NoError(t, err)
	assert.Equal(t, "New", full.Title)
	assert.Equal(t, 3, full.TotalCopies)
	assert.Equal(t, 1, full.AvailableCopies, "omitted optional fields keep their value")
}

func TestUpdateMissingBookIsNotFound(t *testing.T) {
	mgr := newManager(t)

	_, err := mgr.PartialUpdateBook(context.Background(), admin, 5, decode[BookInput](t, `{"title":"x"}`))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, nf.Field)
}

func TestCopiesInvariantNotEnforced(t *testing.T) {
	mgr := newManager(t)
	a := createAuthor(t, mgr, `{"name":"Author"}`)
	b := createBook(t, mgr, a.ID, "Title", "1", "Fiction")

	got, err := mgr.PartialUpdateBook(context.Background(), admin, b.ID, decode[BookInput](t, `{"available_copies":5,"total_copies":2}`))
	require.NoError(t, err)
	assert.Equal(t, 5, got.AvailableCopies)
}

// ------------------ Members ------------------

func TestCreateMemberDefaults(t *testing.T) {
	mgr := newManager(t)

	m := createMember(t, mgr, "Reader", "reader@example.com")
	assert.Equal(t, MemberActive, m.Status)
	assert.Equal(t, "2024-03-10", m.MembershipDate.String())
	assert.Zero(t, m.BorrowedBooksCount)
}

func TestMemberValidation(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	_, err := mgr.CreateMember(ctx, admin, decode[MemberInput](t, `{"name":"R","email":"not-an-email"}`))
	requireFieldError(t, err, "email", msgEmail)

	_, err = mgr.CreateMember(ctx, admin, decode[MemberInput](t, `{"name":"R","email":"r@example.com","status":"BANNED"}`))
	requireFieldError(t, err, "status", `"BANNED" is not a valid choice.`)

	createMember(t, mgr, "A", "same@example.com")
	_, err = mgr.CreateMember(ctx, admin, decode[MemberInput](t, `{"name":"B","email":"same@example.com"}`))
	requireFieldError(t, err, "email", "member with this email already exists.")
}

func TestSearchMembers(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	alice := createMember(t, mgr, "Alice", "alice@example.com")
	createMember(t, mgr, "Bob", "bob@example.org")

	got, err := mgr.ListMembers(ctx, admin, MemberQuery{Search: "EXAMPLE.COM"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, alice.ID, got[0].ID)
}

func TestMemberAccessIsAdminOnly(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	m := createMember(t, mgr, "Reader", "reader@example.com")

	_, err := mgr.ListMembers(ctx, reader, MemberQuery{})
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = mgr.GetMember(ctx, Anonymous, m.ID)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestDeleteMemberRequiresAdminAndCascades(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	a := createAuthor(t, mgr, `{"name":"Author"}`)
	b := createBook(t, mgr, a.ID, "Title", "1", "Fiction")
	m := createMember(t, mgr, "Reader", "reader@example.com")
	r := createBorrow(t, mgr, b.ID, m.ID, testNow, testNow.Add(24*time.Hour))

	err := mgr.DeleteMember(ctx, reader, m.ID)
	var authz *AuthorizationError
	require.ErrorAs(t, err, &authz)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, OpDelete, authz.Operation)

	_, err = mgr.GetMember(ctx, admin, m.ID)
	require.NoError(t, err, "denied delete must not touch the member")

	require.NoError(t, mgr.DeleteMember(ctx, admin, m.ID))

	_, err = mgr.GetBorrowRecord(ctx, reader, r.ID)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, ResourceBorrowRecord, nf.Resource)
}

// ------------------ Borrow records ------------------

func createBorrow(t *testing.T, mgr *LibraryManager, bookID, memberID int64, borrowed, due time.Time) BorrowRecordView {
	t.Helper()
	body := `{"book":` + itoa(bookID) + `,"member":` + itoa(memberID) +
		`,"borrow_date":"` + borrowed.Format(time.RFC3339) + `","due_date":"` + due.Format(time.RFC3339) + `"}`
	r, err := mgr.CreateBorrowRecord(context.Background(), admin, decode[BorrowRecordInput](t, body))
	require.NoError(t, err)
	return r
}

func TestBorrowRecordView(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	a := createAuthor(t, mgr, `{"name":"Author"}`)
	b := createBook(t, mgr, a.ID, "Dune", "1", "SF")
	m := createMember(t, mgr, "Paul", "paul@example.com")

	r := createBorrow(t, mgr, b.ID, m.ID, testNow.Add(-30*24*time.Hour), testNow.Add(-time.Hour))
	assert.Equal(t, StatusBorrowed, r.Status)
	assert.Equal(t, "Dune", r.BookTitle)
	assert.Equal(t, "Paul", r.MemberName)
	assert.True(t, r.IsOverdue)
	assert.Nil(t, r.ReturnDate)

	member, err := mgr.GetMember(ctx, admin, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, member.BorrowedBooksCount)

	returned, err := mgr.PartialUpdateBorrowRecord(ctx, admin, r.ID, decode[BorrowRecordInput](t,
		`{"return_date":"`+testNow.Format(time.RFC3339)+`","status":"RETURNED"}`))
	require.NoError(t, err)
	assert.False(t, returned.IsOverdue)
	assert.Equal(t, StatusReturned, returned.Status)

	member, err = mgr.GetMember(ctx, admin, m.ID)
	require.NoError(t, err)
	assert.Zero(t, member.BorrowedBooksCount)
}

func TestBorrowStatusIsNeverChangedAutomatically(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	a := createAuthor(t, mgr, `{"name":"Author"}`)
	b := createBook(t, mgr, a.ID, "T", "1", "X")
	m := createMember(t, mgr, "R", "r@example.com")
	r := createBorrow(t, mgr, b.ID, m.ID, testNow.Add(-48*time.Hour), testNow.Add(-24*time.Hour))

	got, err := mgr.GetBorrowRecord(ctx, reader, r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOverdue)
	assert.Equal(t, StatusBorrowed, got.Status)
}

func TestBorrowRecordValidation(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	_, err := mgr.CreateBorrowRecord(ctx, admin, decode[BorrowRecordInput](t, `{"status":"LOST"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"book", "member", "borrow_date", "due_date"} {
		assert.Equal(t, []string{msgRequired}, verr.Fields[field], field)
	}
	assert.Equal(t, []string{`"LOST" is not a valid choice.`}, verr.Fields["status"])
}

func TestBorrowRecordWritesNeedAdmin(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	_, err := mgr.CreateBorrowRecord(ctx, reader, BorrowRecordInput{})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = mgr.ListBorrowRecords(ctx, reader, BorrowRecordQuery{})
	assert.NoError(t, err)

	_, err = mgr.ListBorrowRecords(ctx, Anonymous, BorrowRecordQuery{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
