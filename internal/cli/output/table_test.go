package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	table := NewTableData("Kind", "Title ID", "Size")

	assert.Equal(t, []string{"Kind", "Title ID", "Size"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("manual", "0100000000010000", "1.20MiB")
	table.AddRow("system_data", "0100000000001000", "4.00KiB")

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"manual", "0100000000010000", "1.20MiB"}, rows[0])
	assert.Equal(t, []string{"system_data", "0100000000001000", "4.00KiB"}, rows[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Type", "Value")
	table.AddRow("document_path", "index.html")
	table.AddRow("document_kind", "offline_html_page")

	var buf bytes.Buffer
	err := PrintTable(&buf, table)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "TYPE")
	assert.Contains(t, output, "VALUE")
	assert.Contains(t, output, "document_path")
	assert.Contains(t, output, "index.html")
	assert.Contains(t, output, "offline_html_page")
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	err := SimpleTable(&buf, [][2]string{
		{"Shim kind", "offline"},
		{"Decoded entries", "3"},
	})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Shim kind")
	assert.Contains(t, output, "offline")
	assert.Contains(t, output, "Decoded entries")
}
