package validators

import (
	"net/http"
	"testing"

	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	v := NewValidator()
	related := false

	assert.NoError(t, v.Validate(&models.ToggleRequest{CurrentlyRelated: &related}))
	assert.NoError(t, v.Validate(&models.CreatePostRequest{Content: "lowered", ImageURLs: []string{"https://cdn.example.com/a.jpg"}}))

	for _, req := range []interface{}{
		&models.ToggleRequest{},
		&models.CreatePostRequest{},
		&models.CreatePostRequest{Content: "x", ImageURLs: []string{"not a url"}},
		&models.UpdateProfileRequest{DisplayName: "A"},
	} {
		err := v.Validate(req)
		he, ok := err.(*echo.HTTPError)
		if assert.True(t, ok, "%T", req) {
			assert.Equal(t, http.StatusBadRequest, he.Code)
		}
	}
}
