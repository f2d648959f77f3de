package fields

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedWidth(t *testing.T) {
	t.Run("short surname is right padded", func(t *testing.T) {
		got := FixedWidth("Ng", 17)
		assert.Len(t, got, 17)
		assert.Equal(t, "Ng"+strings.Repeat(" ", 15), got)
	})

	t.Run("long surname keeps leftmost characters with no padding", func(t *testing.T) {
		long := "Featherstonehaughs-Smythe" // 25 characters
		got := FixedWidth(long, 17)
		assert.Len(t, got, 17)
		assert.Equal(t, long[:17], got)
	})

	t.Run("exact width passes through", func(t *testing.T) {
		assert.Equal(t, "abcde", FixedWidth("abcde", 5))
	})

	t.Run("absent value fills the slot with spaces", func(t *testing.T) {
		assert.Equal(t, strings.Repeat(" ", 9), FixedWidth("", 9))
		assert.Equal(t, strings.Repeat(" ", 9), Spaces(9))
	})
}
