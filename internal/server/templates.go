package server

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/branchd-dev/roleportal/internal/guard"
)

//go:embed templates/*.html
var templatesFS embed.FS

func loadTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"upper": strings.ToUpper,
		"date":  formatDate,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

func templateName(view guard.View) string {
	return string(view) + ".html"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
