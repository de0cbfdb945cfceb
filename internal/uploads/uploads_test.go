package uploads

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	a := ObjectName("alice", ".jpg")
	b := ObjectName("alice", ".jpg")

	assert.True(t, strings.HasPrefix(a, "uploads/alice/"))
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.NotEqual(t, a, b)
}

func TestDownloadURL(t *testing.T) {
	got := DownloadURL("garage-club.appspot.com", "uploads/alice/x.png", "tok")
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/garage-club.appspot.com/o/uploads%2Falice%2Fx.png?alt=media&token=tok",
		got)
}

func TestAllowedTypes(t *testing.T) {
	for _, ct := range []string{"image/jpeg", "image/png", "image/webp", "image/heic"} {
		_, ok := AllowedTypes[ct]
		assert.True(t, ok, ct)
	}
	_, ok := AllowedTypes["image/gif"]
	assert.False(t, ok)
}
