package library

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// presence records which keys a JSON body carried, so an explicit null can be
// told apart from an absent key. Inputs built in Go leave it nil and are
// judged by their non-nil pointers instead.
type presence map[string]bool

func (p presence) has(field string, set bool) bool {
	if p == nil {
		return set
	}
	return p[field]
}

const (
	msgDateFormat     = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	msgDatetimeFormat = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."
)

// fields maps the JSON keys of an input to the pointer fields they decode into.
type fields map[string]any

// decodeFields decodes each known key of a JSON object on its own, so a bad
// value is reported under its own field. Unknown keys are ignored.
func decodeFields(data []byte, targets fields) (presence, error) {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, fieldError(nonFieldErrors, notAnObject(data))
	}

	var verr ValidationError
	p := make(presence, len(raw))
	for key, value := range raw {
		p[key] = true
		target, ok := targets[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, target); err != nil {
			verr.Add(key, decodeMessage(target, value))
		}
	}
	return p, verr.Err()
}

func notAnObject(data []byte) string {
	if !json.Valid(data) {
		return "Malformed JSON body."
	}
	return fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", jsonKind(data))
}

func decodeMessage(target any, value []byte) string {
	switch target.(type) {
	case **string:
		return "Not a valid string."
	case **bool:
		return "Must be a valid boolean."
	case **int:
		return "A valid integer is required."
	case **int64:
		return fmt.Sprintf("Incorrect type. Expected pk value, received %s.", jsonKind(value))
	case **Date:
		return msgDateFormat
	case **time.Time:
		return msgDatetimeFormat
	case **MemberStatus, **BorrowStatus:
		return fmt.Sprintf("%q is not a valid choice.", strings.Trim(string(value), `"`))
	}
	return "Invalid value."
}

// jsonKind names the type of a JSON value the way error messages refer to it.
func jsonKind(value []byte) string {
	v := bytes.TrimSpace(value)
	if len(v) == 0 {
		return "nothing"
	}
	switch v[0] {
	case '"':
		return "str"
	case 't', 'f':
		return "bool"
	case '[':
		return "list"
	case '{':
		return "dict"
	case 'n':
		return "null"
	}
	return "float"
}

type inputDecoder interface {
	decode(data []byte) error
}

// DecodeInput parses a request body into one of the *Input types. An empty body
// reads as an empty object. Values of the wrong type or format come back as a
// ValidationError keyed by their field.
func DecodeInput(data []byte, dst any) error {
	d, ok := dst.(inputDecoder)
	if !ok {
		return fmt.Errorf("decode input: unsupported type %T", dst)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	return d.decode(data)
}

// assign copies src into dst when the field was sent. required marks fields
// that must be present on create and full update.
func assign[T any](verr *ValidationError, sent bool, field string, src *T, dst *T, required bool) {
	switch {
	case !sent:
		if required {
			verr.Add(field, msgRequired)
		}
	case src == nil:
		verr.Add(field, msgNull)
	default:
		*dst = *src
	}
}

func assignString(verr *ValidationError, sent bool, field string, src *string, dst *string, required bool) {
	if src != nil {
		trimmed := strings.TrimSpace(*src)
		src = &trimmed
	}
	assign(verr, sent, field, src, dst, required)
}

// AuthorInput is the writable shape of an Author.
type AuthorInput struct {
	Name      *string `json:"name"`
	Biography *string `json:"biography"`

	present presence
}

func (in *AuthorInput) decode(data []byte) error {
	present, err := decodeFields(data, fields{
		"name": &in.Name,
		"biography": &in.Biography,
	})
	in.present = present
	return err
}

func (in *AuthorInput) UnmarshalJSON(data []byte) error { return in.decode(data) }

func (in AuthorInput) apply(a *Author, partial bool, verr *ValidationError) {
	assignString(verr, in.present.has("name", in.Name != nil), "name", in.Name, &a.Name, !partial)
	if in.present.has("biography", in.Biography != nil) {
		a.Biography = in.Biography
	}
}

// BookInput is the writable shape of a Book. Author holds the author id.
type BookInput struct {
	Title              *string `json:"title"`
	ISBN               *string `json:"isbn"`
	Category           *string `json:"category"`
	AvailabilityStatus *bool   `json:"availability_status"`
	PublicationDate    *Date   `json:"publication_date"`
	TotalCopies        *int    `json:"total_copies"`
	AvailableCopies    *int    `json:"available_copies"`
	Author             *int64  `json:"author"`

	present presence
}

func (in *BookInput) decode(data []byte) error {
	present, err := decodeFields(data, fields{
		"title": &in.Title,
		"isbn": &in.ISBN,
		"category": &in.Category,
		"availability_status": &in.AvailabilityStatus,
		"publication_date": &in.PublicationDate,
		"total_copies": &in.TotalCopies,
		"available_copies": &in.AvailableCopies,
		"author": &in.Author,
	})
	in.present = present
	return err
}

func (in *BookInput) UnmarshalJSON(data []byte) error { return in.decode(data) }

func (in BookInput) apply(b *Book, partial bool, verr *ValidationError) {
	p := in.present
	assignString(verr, p.has("title", in.Title != nil), "title", in.Title, &b.Title, !partial)
	assignString(verr, p.has("isbn", in.ISBN != nil), "isbn", in.ISBN, &b.ISBN, !partial)
	assignString(verr, p.has("category", in.Category != nil), "category", in.Category, &b.Category, !partial)
	assign(verr, p.has("availability_status", in.AvailabilityStatus != nil), "availability_status", in.AvailabilityStatus, &b.AvailabilityStatus, false)
	assign(verr, p.has("publication_date", in.PublicationDate != nil), "publication_date", in.PublicationDate, &b.PublicationDate, !partial)
	assign(verr, p.has("total_copies", in.TotalCopies != nil), "total_copies", in.TotalCopies, &b.TotalCopies, false)
	assign(verr, p.has("available_copies", in.AvailableCopies != nil), "available_copies", in.AvailableCopies, &b.AvailableCopies, false)
	assign(verr, p.has("author", in.Author != nil), "author", in.Author, &b.AuthorID, !partial)
}

// MemberInput is the writable shape of a Member.
type MemberInput struct {
	Name           *string       `json:"name"`
	Email          *string       `json:"email"`
	MembershipDate *Date         `json:"membership_date"`
	Status         *MemberStatus `json:"status"`

	present presence
}

func (in *MemberInput) decode(data []byte) error {
	present, err := decodeFields(data, fields{
		"name": &in.Name,
		"email": &in.Email,
		"membership_date": &in.MembershipDate,
		"status": &in.Status,
	})
	in.present = present
	return err
}

func (in *MemberInput) UnmarshalJSON(data []byte) error { return in.decode(data) }

func (in MemberInput) apply(m *Member, partial bool, verr *ValidationError) {
	p := in.present
	assignString(verr, p.has("name", in.Name != nil), "name", in.Name, &m.Name, !partial)
	assignString(verr, p.has("email", in.Email != nil), "email", in.Email, &m.Email, !partial)
	assign(verr, p.has("membership_date", in.MembershipDate != nil), "membership_date", in.MembershipDate, &m.MembershipDate, false)
	assign(verr, p.has("status", in.Status != nil), "status", in.Status, &m.Status, false)
}

// BorrowRecordInput is the writable shape of a BorrowRecord. Book and Member
// hold ids.
type BorrowRecordInput struct {
	Book       *int64        `json:"book"`
	Member     *int64        `json:"member"`
	BorrowDate *time.Time    `json:"borrow_date"`
	DueDate    *time.Time    `json:"due_date"`
	ReturnDate *time.Time    `json:"return_date"`
	Status     *BorrowStatus `json:"status"`

	present presence
}

func (in *BorrowRecordInput) decode(data []byte) error {
	present, err := decodeFields(data, fields{
		"book": &in.Book,
		"member": &in.Member,
		"borrow_date": &in.BorrowDate,
		"due_date": &in.DueDate,
		"return_date": &in.ReturnDate,
		"status": &in.Status,
	})
	in.present = present
	return err
}

func (in *BorrowRecordInput) UnmarshalJSON(data []byte) error { return in.decode(data) }

func (in BorrowRecordInput) apply(r *BorrowRecord, partial bool, verr *ValidationError) {
	p := in.present
	assign(verr, p.has("book", in.Book != nil), "book", in.Book, &r.BookID, !partial)
	assign(verr, p.has("member", in.Member != nil), "member", in.Member, &r.MemberID, !partial)
	assign(verr, p.has("borrow_date", in.BorrowDate != nil), "borrow_date", in.BorrowDate, &r.BorrowDate, !partial)
	assign(verr, p.has("due_date", in.DueDate != nil), "due_date", in.DueDate, &r.DueDate, !partial)
	assign(verr, p.has("status", in.Status != nil), "status", in.Status, &r.Status, false)
	if p.has("return_date", in.ReturnDate != nil) {
		r.ReturnDate = in.ReturnDate
	}
}
