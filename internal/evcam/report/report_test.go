package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rotation.report/internal/evcamdb"
)

func TestRenderSession(t *testing.T) {
	poses := []evcamdb.Pose{
		{UnixNanos: 0, RotX: 0.01, RotY: 0.02, RotZ: 0.03, EventCount: 10},
		{UnixNanos: 500_000_000, RotX: 0.02, RotY: 0.01, RotZ: 0.04, EventCount: 12},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderSession(&buf, "bench", poses))

	html := buf.String()
	assert.True(t, strings.Contains(html, "rx"), "report should contain the rx series")
	assert.True(t, strings.Contains(html, "bench"), "report should name the session")
}

func TestRenderSession_NoPoses(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, RenderSession(&buf, "empty", nil))
	assert.Zero(t, buf.Len())
}
