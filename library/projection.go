package library

import "time"

// The views below are the response shapes of the resource endpoints. Derived
// fields are filled from the related rows passed in; nothing is stored.

type AuthorView struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Biography  *string `json:"biography"`
	BooksCount int     `json:"books_count"`
}

func ProjectAuthor(a Author, booksCount int) AuthorView {
	return AuthorView{
		ID:         a.ID,
		Name:       a.Name,
		Biography:  a.Biography,
		BooksCount: booksCount,
	}
}

// BookListView is the compact shape used by the book listing.
type BookListView struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	ISBN               string `json:"isbn"`
	Category           string `json:"category"`
	AvailabilityStatus bool   `json:"availability_status"`
	AvailableCopies    int    `json:"available_copies"`
	AuthorName         string `json:"author_name"`
}

func ProjectBookListItem(b Book, author Author) BookListView {
	return BookListView{
		ID:                 b.ID,
		Title:              b.Title,
		ISBN:               b.ISBN,
		Category:           b.Category,
		AvailabilityStatus: b.AvailabilityStatus,
		AvailableCopies:    b.AvailableCopies,
		AuthorName:         author.Name,
	}
}

// BookDetailView is returned by retrieve, create and update.
type BookDetailView struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	ISBN               string `json:"isbn"`
	Category           string `json:"category"`
	AvailabilityStatus bool   `json:"availability_status"`
	PublicationDate    Date   `json:"publication_date"`
	TotalCopies        int    `json:"total_copies"`
	AvailableCopies    int    `json:"available_copies"`
	Author             int64  `json:"author"`
	AuthorName         string `json:"author_name"`
}

func ProjectBookDetail(b Book, author Author) BookDetailView {
	return BookDetailView{
		ID:                 b.ID,
		Title:              b.Title,
		ISBN:               b.ISBN,
		Category:           b.Category,
		AvailabilityStatus: b.AvailabilityStatus,
		PublicationDate:    b.PublicationDate,
		TotalCopies:        b.TotalCopies,
		AvailableCopies:    b.AvailableCopies,
		Author:             b.AuthorID,
		AuthorName:         author.Name,
	}
}

type MemberView struct {
	ID                 int64        `json:"id"`
	Name               string       `json:"name"`
	Email              string       `json:"email"`
	MembershipDate     Date         `json:"membership_date"`
	Status             MemberStatus `json:"status"`
	BorrowedBooksCount int          `json:"borrowed_books_count"`
}

// ProjectMember takes the number of the member's records in BORROWED status.
func ProjectMember(m Member, borrowedCount int) MemberView {
	return MemberView{
		ID:                 m.ID,
		Name:               m.Name,
		Email:              m.Email,
		MembershipDate:     m.MembershipDate,
		Status:             m.Status,
		BorrowedBooksCount: borrowedCount,
	}
}

type BorrowRecordView struct {
	ID         int64        `json:"id"`
	Book       int64        `json:"book"`
	Member     int64        `json:"member"`
	BookTitle  string       `json:"book_title"`
	MemberName string       `json:"member_name"`
	BorrowDate time.Time    `json:"borrow_date"`
	DueDate    time.Time    `json:"due_date"`
	ReturnDate *time.Time   `json:"return_date"`
	Status     BorrowStatus `json:"status"`
	IsOverdue  bool         `json:"is_overdue"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func ProjectBorrowRecord(r BorrowRecord, book Book, member Member, now time.Time) BorrowRecordView {
	return BorrowRecordView{
		ID:         r.ID,
		Book:       r.BookID,
		Member:     r.MemberID,
		BookTitle:  book.Title,
		MemberName: member.Name,
		BorrowDate: r.BorrowDate,
		DueDate:    r.DueDate,
		ReturnDate: r.ReturnDate,
		Status:     r.Status,
		IsOverdue:  IsOverdue(r, now),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// IsOverdue is true while the book is out past its due date. It does not
// look at Status.
func IsOverdue(r BorrowRecord, now time.Time) bool {
	return r.ReturnDate == nil && now.After(r.DueDate)
}
