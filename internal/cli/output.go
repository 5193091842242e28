package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/vvka-141/reconnect/internal/db"
	"github.com/vvka-141/reconnect/internal/tui"
)

const nullText = "NULL"

func printResultSet(out io.Writer, rs *db.ResultSet, styled bool) {
	rows := make([][]string, 0, rs.Len())
	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		rows = append(rows, cells)
	}

	fmt.Fprintln(out, tui.RenderTable(rs.Columns, rows, styled))
	fmt.Fprintf(out, "(%d row(s))\n", rs.Len())
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return nullText
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
