package latex

import (
	"strings"
	"testing"

	"github.com/nainya/applydesk/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, `R\&D at 50\% \$ \#1 a\_b \{x\}`, Escape(`R&D at 50% $ #1 a_b {x}`))
	assert.Equal(t, `C:\textbackslash{}dir \textasciitilde{}home x\textasciicircum{}2`, Escape(`C:\dir ~home x^2`))
}

func TestRenderCoverLetter(t *testing.T) {
	c := content.Content{
		Kind: content.KindCoverLetter,
		Fields: map[string]string{
			"greeting":  "Dear Acme & Co,",
			"opening":   "I am applying for the Go role.",
			"closing":   "Thank you.",
			"signature": "Sincerely,\nAda",
		},
		Body: []string{"I cut costs by 40%.", "I like_snakes."},
	}
	lh := Letterhead{Name: "Ada Lovelace", Email: "ada@example.com", Location: "London"}

	out, err := Render(c, lh)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, `\documentclass`))
	assert.Contains(t, out, `{\Large\bfseries Ada Lovelace}`)
	assert.Contains(t, out, `ada@example.com \textbar{} London`)
	assert.Contains(t, out, `Dear Acme \& Co,`)
	assert.Contains(t, out, `I cut costs by 40\%.`)
	assert.Contains(t, out, `Sincerely, \\`+"\nAda")
	assert.True(t, strings.HasSuffix(out, "\\end{document}\n"))

	// reading order: opening, body, closing
	iOpen := strings.Index(out, "I am applying")
	iBody := strings.Index(out, "I like\\_snakes.")
	iClose := strings.Index(out, "Thank you.")
	assert.Less(t, iOpen, iBody)
	assert.Less(t, iBody, iClose)

	again, err := Render(c, lh)
	require.NoError(t, err)
	assert.Equal(t, out, again, "output must be deterministic")
}

func TestRenderResume(t *testing.T) {
	c := content.Content{
		Kind: content.KindResume,
		Fields: map[string]string{
			"headline": "Backend Engineer",
			"summary":  "Ten years of services.",
			"skills":   "Go\nPostgreSQL",
		},
		Body: []string{"Acme, 2020-2024: built the billing pipeline."},
	}

	out, err := Render(c, Letterhead{})
	require.NoError(t, err)

	assert.NotContains(t, out, `\begin{center}`, "empty letterhead renders nothing")
	assert.Contains(t, out, `\section*{Experience}`)
	assert.Contains(t, out, `\section*{Skills}`)
	assert.NotContains(t, out, `\section*{Education}`)
	assert.Less(t, strings.Index(out, "Summary"), strings.Index(out, "Experience"))
}

func TestRenderUnknownKind(t *testing.T) {
	_, err := Render(content.Content{Kind: "memo"}, Letterhead{})
	assert.ErrorIs(t, err, content.ErrUnknownKind)
}
