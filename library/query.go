package library

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
)

// QueryMod narrows or orders a select. Listing options are turned into a
// chain of these and applied in order.
type QueryMod func(q squirrel.SelectBuilder) squirrel.SelectBuilder

func applyMods(q squirrel.SelectBuilder, mods []QueryMod) squirrel.SelectBuilder {
	for _, mod := range mods {
		q = mod(q)
	}
	return q
}

func eq(column string, value any) QueryMod {
	return func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		return q.Where(squirrel.Eq{column: value})
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchTerms splits a search value the way list endpoints expect: on
// whitespace and commas, dropping empties.
func searchTerms(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// search matches rows where every term is a case-insensitive substring of at
// least one of the columns.
func search(value string, columns ...string) QueryMod {
	terms := searchTerms(value)
	return func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if len(terms) == 0 {
			return q
		}

		all := squirrel.And{}
		for _, term := range terms {
			pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
			anyOf := squirrel.Or{}
			for _, col := range columns {
				anyOf = append(anyOf, squirrel.Expr("LOWER("+col+`) LIKE ? ESCAPE '\'`, pattern))
			}
			all = append(all, anyOf)
		}
		return q.Where(all)
	}
}

// AuthorQuery holds the recognized options of the author listing.
type AuthorQuery struct {
	Search string
}

func ParseAuthorQuery(params url.Values) AuthorQuery {
	return AuthorQuery{Search: params.Get("search")}
}

func (aq AuthorQuery) mods() []QueryMod {
	return []QueryMod{search(aq.Search, "authors.name", "authors.biography")}
}

// BookQuery holds the recognized options of the book listing. Nil filters are
// not applied.
type BookQuery struct {
	Category  *string
	AuthorID  *int64
	Available *bool
	Search    string
}

func ParseBookQuery(params url.Values) (BookQuery, error) {
	var (
		bq   = BookQuery{Search: params.Get("search")}
		verr ValidationError
	)

	if v := params.Get("category"); v != "" {
		bq.Category = &v
	}
	bq.AuthorID = parseIDParam(params, "author", &verr)
	if v := params.Get("availability_status"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			verr.Add("availability_status", "Enter a valid boolean.")
		} else {
			bq.Available = &b
		}
	}
	return bq, verr.Err()
}

func (bq BookQuery) mods() []QueryMod {
	var mods []QueryMod
	if bq.Category != nil {
		mods = append(mods, eq("books.category", *bq.Category))
	}
	if bq.AuthorID != nil {
		mods = append(mods, eq("books.author_id", *bq.AuthorID))
	}
	if bq.Available != nil {
		mods = append(mods, eq("books.availability_status", *bq.Available))
	}
	if len(searchTerms(bq.Search)) > 0 {
		mods = append(mods,
			func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
				return q.Join("authors ON authors.id = books.author_id")
			},
			search(bq.Search, "books.title", "books.category", "authors.name"),
		)
	}
	return mods
}

// MemberQuery holds the recognized options of the member listing.
type MemberQuery struct {
	Search string
}

func ParseMemberQuery(params url.Values) MemberQuery {
	return MemberQuery{Search: params.Get("search")}
}

func (mq MemberQuery) mods() []QueryMod {
	return []QueryMod{search(mq.Search, "members.name", "members.email")}
}

// BorrowRecordQuery holds the recognized options of the borrow record listing.
type BorrowRecordQuery struct {
	Status   *BorrowStatus
	BookID   *int64
	MemberID *int64
}

func ParseBorrowRecordQuery(params url.Values) (BorrowRecordQuery, error) {
	var (
		rq   BorrowRecordQuery
		verr ValidationError
	)

	if v := params.Get("status"); v != "" {
		switch s := BorrowStatus(v); s {
		case StatusBorrowed, StatusReturned, StatusOverdue:
			rq.Status = &s
		default:
			verr.Add("status", "Select a valid choice. "+v+" is not one of the available choices.")
		}
	}
	rq.BookID = parseIDParam(params, "book", &verr)
	rq.MemberID = parseIDParam(params, "member", &verr)
	return rq, verr.Err()
}

func (rq BorrowRecordQuery) mods() []QueryMod {
	var mods []QueryMod
	if rq.Status != nil {
		mods = append(mods, eq("borrow_records.status", *rq.Status))
	}
	if rq.BookID != nil {
		mods = append(mods, eq("borrow_records.book_id", *rq.BookID))
	}
	if rq.MemberID != nil {
		mods = append(mods, eq("borrow_records.member_id", *rq.MemberID))
	}
	return mods
}

func parseIDParam(params url.Values, name string, verr *ValidationError) *int64 {
	v := params.Get(name)
	if v == "" {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		verr.Add(name, "Select a valid choice. That choice is not one of the available choices.")
		return nil
	}
	return &id
}
