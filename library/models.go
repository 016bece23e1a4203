package library

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// MemberStatus is the membership state of a library member.
type MemberStatus string

const (
	MemberActive   MemberStatus = "ACTIVE"
	MemberInactive MemberStatus = "INACTIVE"
)

// BorrowStatus is the caller-maintained state of a borrow record. Nothing in
// the service moves a record from BORROWED to OVERDUE on its own; see IsOverdue
// for the time-derived flag.
type BorrowStatus string

const (
	StatusBorrowed BorrowStatus = "BORROWED"
	StatusReturned BorrowStatus = "RETURNED"
	StatusOverdue  BorrowStatus = "OVERDUE"
)

// Author writes zero or more books. Deleting an author deletes its books.
type Author struct {
	ID        int64   `db:"id" json:"id"`
	Name      string  `db:"name" json:"name" validate:"required,max=255"`
	Biography *string `db:"biography" json:"biography"`
}

// Book is a catalog entry. The store keeps isbn unique.
type Book struct {
	ID                 int64     `db:"id" json:"id"`
	Title              string    `db:"title" json:"title" validate:"required,max=150"`
	ISBN               string    `db:"isbn" json:"isbn" validate:"required,max=15"`
	Category           string    `db:"category" json:"category" validate:"required,max=100"`
	AvailabilityStatus bool      `db:"availability_status" json:"availability_status"`
	PublicationDate    Date      `db:"publication_date" json:"publication_date"`
	TotalCopies        int       `db:"total_copies" json:"total_copies"`
	AvailableCopies    int       `db:"available_copies" json:"available_copies"`
	AuthorID           int64     `db:"author_id" json:"author"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Member is a registered library member. The store keeps email unique.
type Member struct {
	ID             int64        `db:"id" json:"id"`
	Name           string       `db:"name" json:"name" validate:"required,max=255"`
	Email          string       `db:"email" json:"email" validate:"required,max=254,email"`
	MembershipDate Date         `db:"membership_date" json:"membership_date"`
	Status         MemberStatus `db:"status" json:"status" validate:"oneof=ACTIVE INACTIVE"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// BorrowRecord ties one book to one member for a lending period.
type BorrowRecord struct {
	ID         int64        `db:"id" json:"id"`
	BookID     int64        `db:"book_id" json:"book"`
	MemberID   int64        `db:"member_id" json:"member"`
	BorrowDate time.Time    `db:"borrow_date" json:"borrow_date"`
	DueDate    time.Time    `db:"due_date" json:"due_date"`
	ReturnDate *time.Time   `db:"return_date" json:"return_date"`
	Status     BorrowStatus `db:"status" json:"status" validate:"oneof=BORROWED RETURNED OVERDUE"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

const dateLayout = time.DateOnly

// Date is a calendar day without time of day, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the given day at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("date has wrong format, use YYYY-MM-DD: %q", s)
	}
	*d = Date{t}
	return nil
}

// Value stores the day as a midnight UTC timestamp.
func (d Date) Value() (driver.Value, error) {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("scan date: unsupported type %T", src)
}

func (d *Date) scanString(s string) error {
	if len(s) < len(dateLayout) {
		return fmt.Errorf("scan date: %q", s)
	}
	t, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		return fmt.Errorf("scan date: %w", err)
	}
	*d = Date{t}
	return nil
}
