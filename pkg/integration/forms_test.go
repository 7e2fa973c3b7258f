package integration

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicSettings(t *testing.T) {
	ti := newTestIntegration("x", Settings{"token": "secret", "empty": "", "name": "n"}, newTestContext())
	ti.fields = []Field{
		{Key: "token", Type: FieldPassword},
		{Key: "empty", Type: FieldPassword},
		{Key: "name", Type: FieldText},
	}

	got := PublicSettings(ti)
	assert.Equal(t, maskedSecret, got["token"])
	assert.Equal(t, "", got["empty"])
	assert.Equal(t, "n", got["name"])
	assert.Equal(t, "secret", ti.Settings().String("token"), "stored value untouched")
}

func TestFormSettings(t *testing.T) {
	ti := newTestIntegration("x", Settings{}, newTestContext())
	ti.fields = []Field{
		{Key: "enabled", Type: FieldCheckbox},
		{Key: "share", Type: FieldCheckbox},
		{Key: "count", Type: FieldNumber},
		{Key: "bad", Type: FieldNumber},
		{Key: "topics", Type: FieldTextarea},
		{Key: "missing", Type: FieldText},
	}
	form := url.Values{
		"enabled": {"1"},
		"count":   {" 7 "},
		"bad":     {"seven"},
		"topics":  {"a\nb"},
		"extra":   {"ignored"},
	}

	assert.Equal(t, Settings{
		"enabled": true,
		"share":   false,
		"count":   int64(7),
		"topics":  "a\nb",
	}, FormSettings(ti, form))
}

func TestFormSettingsWithoutFields(t *testing.T) {
	ti := newTestIntegration("x", Settings{}, newTestContext())
	got := FormSettings(ti, url.Values{"a": {"1"}})
	assert.Equal(t, Settings{"a": "1"}, got)
}
