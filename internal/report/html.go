package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

func htmlTemplate(loc *time.Location) (*template.Template, error) {
	return template.New("report.html.tmpl").Funcs(template.FuncMap{
		"seconds":   Seconds,
		"percent":   Percent,
		"count":     Count,
		"breakdown": Breakdown,
		"trim":      strings.TrimSpace,
		"ratio":     func(v float64) string { return fmt.Sprintf("%.2f", v) },
		"preview":   func(sql string) string { return Truncate(OneLine(sql), htmlQueryWidth) },
		"timeRange": func(first, last time.Time) string { return TimeRange(first, last, loc) },
	}).ParseFS(templateFS, "templates/report.html.tmpl")
}

func renderHTML(w io.Writer, rep Report) error {
	tmpl, err := htmlTemplate(rep.location())
	if err != nil {
		return fmt.Errorf("parsing html template: %w", err)
	}
	if err := tmpl.Execute(w, rep); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	return nil
}
