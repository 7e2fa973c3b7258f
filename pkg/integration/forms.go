package integration

import (
	"net/url"
	"strconv"
	"strings"
)

// PublicSettings returns the settings of i with password fields masked, for
// display outside the settings form.
func PublicSettings(i Integration) Settings {
	s := i.Settings()
	fp, ok := i.(FieldProvider)
	if !ok {
		return s
	}
	for _, f := range fp.SettingsFields() {
		if f.Type == FieldPassword && s.String(f.Key) != "" {
			s[f.Key] = maskedSecret
		}
	}
	return s
}

// FormSettings converts a submitted settings form into settings values.
// Unchecked checkboxes are absent from a form post, so every checkbox field
// is set explicitly. Without declared fields each form key is taken as a
// string.
func FormSettings(i Integration, form url.Values) Settings {
	out := Settings{}
	var fields []Field
	if fp, ok := i.(FieldProvider); ok {
		fields = fp.SettingsFields()
	}
	if len(fields) == 0 {
		for k := range form {
			out[k] = form.Get(k)
		}
		return out
	}
	for _, f := range fields {
		switch f.Type {
		case FieldCheckbox:
			out[f.Key] = form.Has(f.Key) && form.Get(f.Key) != "0"
		case FieldNumber:
			if !form.Has(f.Key) {
				continue
			}
			if n, err := strconv.ParseInt(strings.TrimSpace(form.Get(f.Key)), 10, 64); err == nil {
				out[f.Key] = n
			}
		default:
			if form.Has(f.Key) {
				out[f.Key] = form.Get(f.Key)
			}
		}
	}
	return out
}
