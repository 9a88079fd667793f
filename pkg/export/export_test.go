package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Requests",
		Columns: []Column{{Key: "id", Label: "Request"}, {Key: "status"}, {Key: "email", Label: "Email"}},
		Rows: []map[string]string{
			{"id": "r-1", "status": "pending", "email": "a@b.co"},
			{"id": "r-2", "status": "approved", "email": "c, d@e.co"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Request,status,Email", lines[0])
	assert.Equal(t, "r-1,pending,a@b.co", lines[1])
	assert.Equal(t, `r-2,approved,"c, d@e.co"`, lines[2])
}

func TestCSVExporterRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 80; i++ {
		data.Rows = append(data.Rows, map[string]string{"id": "bulk", "status": strings.Repeat("x", 200)})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresColumns(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{Title: "empty"})
	require.Error(t, err)
}
