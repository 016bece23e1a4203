package library

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInputTracksPresence(t *testing.T) {
	var in AuthorInput
	require.NoError(t, DecodeInput([]byte(`{"name":"A","biography":null}`), &in))

	a := Author{Biography: ptr("old")}
	var verr ValidationError
	in.apply(&a, true, &verr)

	require.NoError(t, verr.Err())
	assert.Equal(t, "A", a.Name)
	assert.Nil(t, a.Biography, "explicit null clears a nullable field")
}

func TestPartialApplyLeavesAbsentFields(t *testing.T) {
	var in AuthorInput
	require.NoError(t, DecodeInput([]byte(`{"name":"B"}`), &in))

	a := Author{Name: "A", Biography: ptr("kept")}
	var verr ValidationError
	in.apply(&a, true, &verr)

	require.NoError(t, verr.Err())
	assert.Equal(t, "kept", *a.Biography)
}

func TestDecodeInputEmptyBody(t *testing.T) {
	var in BookInput
	require.NoError(t, DecodeInput(nil, &in))

	var (
		b    Book
		verr ValidationError
	)
	in.apply(&b, false, &verr)
	assert.True(t, verr.Has("title"))
}

func TestDecodeInputMalformed(t *testing.T) {
	cases := map[string]string{
		"not json": `{"name":`,
		"array":    `[1,2]`,
		"null":     `null`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var in BookInput
			err := DecodeInput([]byte(body), &in)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, []string{nonFieldErrors}, lo.Keys(verr.Fields))
		})
	}
}

func TestDecodeInputReportsBadValuesPerField(t *testing.T) {
	var book BookInput
	err := DecodeInput([]byte(`{"title":"T","publication_date":"01/02/2001","author":"x","total_copies":"three","availability_status":"yes","isbn":7}`), &book)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string][]string{
		"publication_date":    {msgDateFormat},
		"author":              {"Incorrect type. Expected pk value, received str."},
		"total_copies":        {"A valid integer is required."},
		"availability_status": {"Must be a valid boolean."},
		"isbn":                {"Not a valid string."},
	}, verr.Fields)

	var record BorrowRecordInput
	err = DecodeInput([]byte(`{"book":1,"member":1,"borrow_date":"2024-01-01","due_date":"2024-01-15T00:00:00Z","status":3}`), &record)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string][]string{
		"borrow_date": {msgDatetimeFormat},
		"status":      {`"3" is not a valid choice.`},
	}, verr.Fields)
	assert.NotContains(t, verr.Error(), "unmarshalerDecoder")
}

func TestDecodeInputIgnoresUnknownKeys(t *testing.T) {
	var in AuthorInput
	require.NoError(t, DecodeInput([]byte(`{"name":"A","id":99,"books_count":"x"}`), &in))
	assert.Equal(t, "A", *in.Name)
}

func TestDecodeInputRejectsOtherTypes(t *testing.T) {
	var a Author
	assert.Error(t, DecodeInput([]byte(`{}`), &a))
}

func TestGoBuiltInputsUsePointers(t *testing.T) {
	in := MemberInput{Name: ptr("N"), Email: ptr("n@example.com")}

	m := Member{Status: MemberActive}
	var verr ValidationError
	in.apply(&m, false, &verr)

	require.NoError(t, verr.Err())
	assert.Equal(t, "N", m.Name)
	assert.Equal(t, MemberActive, m.Status)
}

func TestValidationErrorMessage(t *testing.T) {
	var verr ValidationError
	assert.NoError(t, verr.Err())

	verr.Add("title", msgRequired)
	verr.Add("isbn", msgBlank)
	assert.Equal(t, "validation failed: isbn: This field may not be blank.; title: This field is required.", verr.Error())
}
