// ABOUTME: Assembles LaTeX source for cover letters and resumes
// ABOUTME: Escapes user text and renders it into fixed document templates

package latex

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/nainya/applydesk/pkg/content"
)

// Letterhead is the sender block printed at the top of every document
type Letterhead struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Website  string `json:"website"`
	LinkedIn string `json:"linkedin"`
}

// Contacts returns the non-empty contact entries in display order
func (l Letterhead) Contacts() []string {
	var out []string
	for _, v := range []string{l.Email, l.Phone, l.Location, l.Website, l.LinkedIn} {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

var replacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`#`, `\#`,
	`%`, `\%`,
	`_`, `\_`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// Escape makes s safe to place in LaTeX body text
func Escape(s string) string {
	return replacer.Replace(s)
}

// paragraphs escapes s and turns its blank lines into paragraph breaks
func paragraphs(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var parts []string
	for _, p := range strings.Split(s, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, Escape(p))
		}
	}
	return strings.Join(parts, "\n\n")
}

// lines escapes s and keeps its line breaks
func lines(s string) string {
	var out []string
	for _, l := range strings.Split(strings.TrimSpace(s), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, Escape(l))
		}
	}
	return strings.Join(out, ` \\`+"\n")
}

var funcs = template.FuncMap{
	"esc":   Escape,
	"para":  paragraphs,
	"lines": lines,
	"join":  strings.Join,
}

const preamble = `\documentclass[11pt]{article}
\usepackage[margin=1in]{geometry}
\usepackage[T1]{fontenc}
\usepackage[utf8]{inputenc}
\usepackage{hyperref}
\setlength{\parindent}{0pt}
\setlength{\parskip}{0.8em}
\pagestyle{empty}
`

const letterheadBlock = `[[- with .Letterhead ]]
\begin{center}
[[- if .Name ]]
{\Large\bfseries [[ esc .Name ]]}\\
[[- end ]]
[[- with .Contacts ]]
[[ range $i, $c := . ]][[ if $i ]] \textbar{} [[ end ]][[ esc $c ]][[ end ]]
[[- end ]]
\end{center}
[[- end ]]
`

var coverLetterTmpl = template.Must(template.New("cover_letter").Delims("[[", "]]").Funcs(funcs).Parse(
	preamble + `\begin{document}
` + letterheadBlock + `
[[ with .F.greeting ]][[ esc . ]]

[[ end ]][[ with .F.opening ]][[ para . ]]

[[ end ]][[ range .Body ]][[ para . ]]

[[ end ]][[ with .F.closing ]][[ para . ]]

[[ end ]][[ with .F.signature ]][[ lines . ]]
[[ end ]]\end{document}
`))

var resumeTmpl = template.Must(template.New("resume").Delims("[[", "]]").Funcs(funcs).Parse(
	preamble + `\begin{document}
` + letterheadBlock + `
[[ with .F.headline ]]{\large [[ esc . ]]}

[[ end ]][[ with .F.summary ]]\section*{Summary}
[[ para . ]]

[[ end ]][[ if .Body ]]\section*{Experience}
[[ range .Body ]][[ para . ]]

[[ end ]][[ end ]][[ with .F.skills ]]\section*{Skills}
[[ lines . ]]

[[ end ]][[ with .F.education ]]\section*{Education}
[[ lines . ]]

[[ end ]]\end{document}
`))

type view struct {
	Letterhead *letterView
	F          map[string]string
	Body       []string
}

type letterView struct {
	Name     string
	Contacts []string
}

// Render assembles the LaTeX source for c. Output is deterministic for the
// same input.
func Render(c content.Content, lh Letterhead) (string, error) {
	var tmpl *template.Template
	switch c.Kind {
	case content.KindCoverLetter:
		tmpl = coverLetterTmpl
	case content.KindResume:
		tmpl = resumeTmpl
	default:
		return "", fmt.Errorf("render %q: %w", c.Kind, content.ErrUnknownKind)
	}

	v := view{F: c.Fields, Body: c.Body}
	if name := strings.TrimSpace(lh.Name); name != "" || len(lh.Contacts()) > 0 {
		v.Letterhead = &letterView{Name: name, Contacts: lh.Contacts()}
	}
	if v.F == nil {
		v.F = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render %s: %w", c.Kind, err)
	}
	return buf.String(), nil
}
