package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/applydesk/pkg/content"
)

func TestParseIdentity(t *testing.T) {
	id, err := parseIdentity("Cover-Letter", " job-7 ")
	require.NoError(t, err)
	assert.Equal(t, content.KindCoverLetter, id.Kind)
	assert.Equal(t, "job-7", id.ID)

	_, err = parseIdentity("memo", "x")
	assert.ErrorIs(t, err, content.ErrUnknownKind)

	_, err = parseIdentity("resume", "  ")
	assert.Error(t, err)
}

func TestRenderContent_BodyFollowsAnchor(t *testing.T) {
	c, err := content.Empty(content.KindCoverLetter)
	require.NoError(t, err)
	c.Fields["greeting"] = "Dear team,"
	c.Fields["opening"] = "I am applying."
	c.Fields["closing"] = "Thanks."
	c.Body = []string{"Para one."}

	out := renderContent(c)

	assert.Less(t, strings.Index(out, "I am applying."), strings.Index(out, "Para one."))
	assert.Less(t, strings.Index(out, "Para one."), strings.Index(out, "Thanks."))
	assert.Contains(t, out, "body 1:")
}

func TestParseID(t *testing.T) {
	id, err := parseID("42", "rule")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = parseID("0", "rule")
	assert.Error(t, err)
	_, err = parseID("abc", "rule")
	assert.Error(t, err)
}
