package report

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const baseCSS = `body{font-family:-apple-system,"Segoe UI",Roboto,sans-serif;color:#1c1917;max-width:900px;margin:0 auto;padding:1rem;}
h1{font-size:1.5rem;border-bottom:2px solid #15803d;padding-bottom:0.3rem;}
h2{font-size:1.15rem;margin-top:1.5rem;color:#14532d;}
table{width:100%;border-collapse:collapse;font-size:0.85rem;margin:0.5rem 0;}
th,td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;}
thead th{background:#f0fdf4;font-weight:700;}
html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}
@media print{ @page{size:auto;margin:12mm;} body{padding:0;max-width:none;} }`

// HTMLBody converts markdown to an HTML fragment.
func HTMLBody(markdown string) (string, error) {
	var out strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &out); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return out.String(), nil
}

// HTML wraps the converted markdown in a standalone document. When webDir
// holds a style.css it is appended after the built-in styles.
func HTML(markdown, title, webDir string) (string, error) {
	body, err := HTMLBody(markdown)
	if err != nil {
		return "", err
	}
	css := baseCSS
	if webDir != "" {
		b, err := os.ReadFile(filepath.Join(webDir, "style.css"))
		switch {
		case err == nil:
			css += "\n" + string(b)
		case !os.IsNotExist(err):
			return "", fmt.Errorf("read style.css: %w", err)
		}
	}
	if title == "" {
		title = "Sale Recommendation"
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + css + "</style></head><body>" + body + "</body></html>", nil
}
