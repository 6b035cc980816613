package csvimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowError(t *testing.T) {
	assert.Equal(t, "row 5, column 'ean': bad check digit",
		NewRowError(5, "ean", ErrCodeInvalidFormat, "bad check digit").Error())
	assert.Equal(t, "row 10: malformed row",
		NewRowError(10, "", ErrCodeMalformedRow, "malformed row").Error())
}

func TestErrorCollection(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		ec := NewErrorCollection(10)
		assert.False(t, ec.HasErrors())
		assert.Equal(t, "no errors", ec.String())

		ec.AddRequiredError(2, ColumnLegacyID)
		ec.AddTypeError(3, ColumnStockQuantity, "integer", "abc")
		ec.AddFormatError(4, ColumnUpdatedAt, "date", "yesterday")

		assert.Equal(t, 3, ec.TotalCount())
		assert.False(t, ec.IsTruncated())
		errs := ec.Errors()
		assert.Equal(t, ErrCodeRequiredField, errs[0].Code)
		assert.Equal(t, "abc", errs[1].Value)
		assert.Equal(t, ErrCodeInvalidFormat, errs[2].Code)
		assert.Contains(t, ec.String(), "3 error(s) found:")
	})

	t.Run("truncates beyond limit", func(t *testing.T) {
		ec := NewErrorCollection(2)
		for i := 0; i < 5; i++ {
			ec.AddRequiredError(i+2, ColumnSKU)
		}
		assert.Len(t, ec.Errors(), 2)
		assert.Equal(t, 5, ec.TotalCount())
		assert.True(t, ec.IsTruncated())
		assert.Contains(t, ec.String(), "(showing first 2)")
	})

	t.Run("default limit", func(t *testing.T) {
		ec := NewErrorCollection(0)
		for i := 0; i < 150; i++ {
			ec.AddRequiredError(i, ColumnSKU)
		}
		assert.Len(t, ec.Errors(), 100)
	})
}
