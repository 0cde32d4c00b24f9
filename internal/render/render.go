// Package render builds the HTML pages the server serves for directory
// listings and error responses.
package render

import (
	"fmt"
	"html"
	"os"
	"sort"
	"strings"

	"github.com/48ca/hypershare/internal/h1"
)

// Directory renders an HTML listing of dir. urlPath is the request path with
// the leading slash stripped; it is used to build entry links. When uploading
// is enabled the page carries a multipart upload form posting back to the
// same directory.
func Directory(urlPath, dir string, uploading bool) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	title := "/" + urlPath
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title></head>\n<body>\n<h1>Directory listing for ")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</h1>\n<hr>\n<ul>\n")
	if urlPath != "" {
		b.WriteString("<li><a href=\"..\">..</a></li>\n")
	}
	for _, name := range names {
		escaped := html.EscapeString(name)
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", escaped, escaped)
	}
	b.WriteString("</ul>\n<hr>\n")
	if uploading {
		b.WriteString("<form method=\"post\" enctype=\"multipart/form-data\">\n")
		b.WriteString("<input type=\"file\" name=\"file\" multiple>\n")
		b.WriteString("<input type=\"submit\" value=\"Upload\">\n</form>\n<hr>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

// StatusPage renders the body for a one-off status response (errors and
// upload confirmations). detail is an optional human-readable explanation.
func StatusPage(status int, detail string) string {
	heading := fmt.Sprintf("%d %s", status, h1.StatusText(status))
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(heading))
	b.WriteString("</title></head>\n<body>\n<h1>")
	b.WriteString(html.EscapeString(heading))
	b.WriteString("</h1>\n")
	if detail != "" {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(detail))
		b.WriteString("</p>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
