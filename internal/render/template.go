package render

import (
	_ "embed"
	"html/template"
)

//go:embed map.html.tmpl
var pageSource string

var pageTemplate = template.Must(template.New("map").Parse(pageSource))
