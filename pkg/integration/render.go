package integration

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
)

// Field types for settings forms.
const (
	FieldText     = "text"
	FieldPassword = "password"
	FieldTextarea = "textarea"
	FieldCheckbox = "checkbox"
	FieldNumber   = "number"
	FieldSelect   = "select"
)

// Field describes one input of an integration settings form.
type Field struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Options     []string `json:"options,omitempty"`
}

const pageStyle = `
        body { font-family: Arial, sans-serif; max-width: 960px; margin: 40px auto; padding: 0 20px; }
        h1 { color: #333; }
        .card { background: #f5f5f5; padding: 15px; margin: 10px 0; border-radius: 5px; }
        .badge { color: #fff; background: #2271b1; padding: 2px 6px; border-radius: 3px; font-size: 12px; }
        .off { background: #8c8f94; }
        .description { color: #666; margin-top: 5px; }
        label { display: block; font-weight: bold; margin-top: 12px; }`

var listTemplate = template.Must(template.New("list").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Integrations</title>
    <style>` + pageStyle + `
    </style>
</head>
<body>
    <h1>Integrations</h1>
{{- range .}}
    <h2 data-category="{{.Category}}">{{.Label}}</h2>
{{- range .Integrations}}
    <div class="card" id="integration-{{.ID}}">
        <div><strong>{{.Name}}</strong> <small>v{{.Version}} by {{.Author}}</small>
        {{if .Enabled}}<span class="badge">enabled</span>{{else}}<span class="badge off">disabled</span>{{end}}</div>
        <div class="description">{{.Description}}</div>
        {{- if .HasSettings}}
        <div><a href="{{.SettingsURL}}">Settings</a></div>
        {{- end}}
    </div>
{{- end}}
{{- else}}
    <p>No integrations are registered.</p>
{{- end}}
</body>
</html>
`))

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Integration.Name}} settings</title>
    <style>` + pageStyle + `
    </style>
</head>
<body>
    <p><a href="{{.ListURL}}">All integrations</a></p>
    <h1>{{.Integration.Name}}</h1>
    <p class="description">{{.Integration.Description}}</p>
    <form method="post" action="/api/integrations/{{.Integration.ID}}/settings">
{{- range .Fields}}
        <label for="{{.Key}}">{{.Label}}</label>
        {{- if eq .Type "checkbox"}}
        <input type="checkbox" id="{{.Key}}" name="{{.Key}}" value="1"{{if .Checked}} checked{{end}}>
        {{- else if eq .Type "textarea"}}
        <textarea id="{{.Key}}" name="{{.Key}}" rows="5">{{.Value}}</textarea>
        {{- else if eq .Type "select"}}
        <select id="{{.Key}}" name="{{.Key}}">
            {{- $v := .Value}}
            {{- range .Options}}
            <option value="{{.}}"{{if eq . $v}} selected{{end}}>{{.}}</option>
            {{- end}}
        </select>
        {{- else}}
        <input type="{{.Type}}" id="{{.Key}}" name="{{.Key}}" value="{{.Value}}">
        {{- end}}
        {{- if .Description}}
        <div class="description">{{.Description}}</div>
        {{- end}}
{{- end}}
        <p><button type="submit">Save</button></p>
    </form>
</body>
</html>
`))

type formField struct {
	Field
	Value   string
	Checked bool
}

type formData struct {
	Integration Summary
	ListURL     string
	Fields      []formField
}

func renderList(w io.Writer, groups []CategoryGroup) error {
	if err := listTemplate.Execute(w, groups); err != nil {
		return fmt.Errorf("failed to render integrations list: %w", err)
	}
	return nil
}

// renderSettingsForm renders fields filled from settings. Without fields, one
// text input per setting key is rendered in key order.
func renderSettingsForm(w io.Writer, s Summary, fields []Field, settings Settings) error {
	if len(fields) == 0 {
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			typ := FieldText
			if _, ok := settings[k].(bool); ok {
				typ = FieldCheckbox
			}
			fields = append(fields, Field{Key: k, Label: k, Type: typ})
		}
	}

	data := formData{Integration: s, ListURL: SettingsPagePath}
	for _, f := range fields {
		ff := formField{Field: f}
		switch f.Type {
		case FieldCheckbox:
			ff.Checked = settings.Bool(f.Key)
		case FieldTextarea:
			switch settings[f.Key].(type) {
			case []string, []any:
				ff.Value = strings.Join(settings.StringSlice(f.Key), "\n")
			default:
				ff.Value = settings.String(f.Key)
			}
		case FieldPassword:
			if settings.String(f.Key) != "" {
				ff.Value = maskedSecret
			}
		default:
			ff.Value = settings.String(f.Key)
		}
		data.Fields = append(data.Fields, ff)
	}

	if err := formTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render settings for %s: %w", s.ID, err)
	}
	return nil
}

// maskedSecret is shown in place of stored secrets. Saving it back leaves the
// stored value unchanged; see KeepSecrets.
const maskedSecret = "********"

// KeepSecrets replaces masked secret values in incoming with the current
// values, so a form round trip does not overwrite stored credentials.
func KeepSecrets(incoming, current Settings, keys ...string) Settings {
	out := incoming.Clone()
	for _, k := range keys {
		if v, ok := out[k]; ok && v == maskedSecret {
			out[k] = current[k]
		}
	}
	return out
}
