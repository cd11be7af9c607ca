package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"id", "status"},
		Rows: [][]string{
			{"req-1", "pending"},
			{"req-2", "assigned"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "id,status\nreq-1,pending\nreq-2,assigned\n", string(out))
}

func TestCSVExporterQuotesSpecialCharacters(t *testing.T) {
	data := Dataset{
		Headers: []string{"id", "message"},
		Rows:    [][]string{{"req-1", "comma, inside"}},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"comma, inside"`)
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := Dataset{
		Headers: []string{"id", "status"},
		Rows:    [][]string{{"req-1"}},
	}

	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"id", "status"},
		Rows:    [][]string{{"course-1", "scheduled"}},
	}

	out, err := NewPDFExporter().Render(data, "Courses")
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))
}
