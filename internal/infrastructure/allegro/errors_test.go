package allegro

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "Zażółć", 64, "Zażółć"},
		{"ascii", "abcdef", 3, "abc..."},
		// "ż" occupies bytes 2 and 3
		{"inside rune", "Zażółć", 3, "Za..."},
		{"on boundary", "Zażółć", 4, "Zaż..."},
		{"first rune", "żółw", 1, "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestAPIError_LongPolishBody(t *testing.T) {
	body := "x" + strings.Repeat("ż", 400)
	err := &APIError{StatusCode: 422, Method: "PATCH", Path: "/sale/product-offers/1001", Body: body}

	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Contains(t, msg, "HTTP 422")
	assert.Less(t, len(msg), len(body))
}
