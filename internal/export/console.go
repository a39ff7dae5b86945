package export

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/roadrings/internal/aggregate"
)

// RenderConsole writes the summary as a year-by-ring table. Rows are
// years, columns are rings in vocabulary order, areas in hectares.
func RenderConsole(out io.Writer, table *aggregate.Table) {
	ringIDs := make([]string, len(table.ByRing))
	for i, r := range table.ByRing {
		ringIDs[i] = r.RingID
	}
	cells := make(map[aggregate.Key]float64, len(table.ByRingYear))
	for _, r := range table.ByRingYear {
		cells[aggregate.Key{RingID: r.RingID, Year: r.Year}] = r.AreaHa
	}

	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)

	head := append([]string{"YEAR"}, ringIDs...)
	head = append(head, "TOTAL")
	_, _ = fmt.Fprintln(w, strings.Join(head, "\t")+"\t")

	dashes := make([]string, len(head))
	for i, h := range head {
		dashes[i] = strings.Repeat("-", len(h))
	}
	_, _ = fmt.Fprintln(w, strings.Join(dashes, "\t")+"\t")

	for _, year := range table.Meta.Years {
		cols := []string{fmt.Sprintf("%d", year)}
		total := 0.0
		for _, id := range ringIDs {
			v := cells[aggregate.Key{RingID: id, Year: year}]
			total += v
			cols = append(cols, p.Sprintf("%.2f", v))
		}
		cols = append(cols, p.Sprintf("%.2f", total))
		_, _ = fmt.Fprintln(w, strings.Join(cols, "\t")+"\t")
	}

	grand := 0.0
	cols := []string{"TOTAL"}
	for _, r := range table.ByRing {
		grand += r.AreaHa
		cols = append(cols, p.Sprintf("%.2f", r.AreaHa))
	}
	cols = append(cols, p.Sprintf("%.2f", grand))
	_, _ = fmt.Fprintln(w, strings.Join(cols, "\t")+"\t")
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nrun %s  aoi %s  features %d  skipped %d  fragments %d\n",
		table.Meta.RunID, table.Meta.AOICode, table.Meta.Features, table.Meta.Skipped, table.Meta.Fragments)
	if table.Meta.UnattributedHa > 0 {
		_, _ = p.Fprintf(out, "unattributed (no year): %.2f ha\n", table.Meta.UnattributedHa)
	}
}
