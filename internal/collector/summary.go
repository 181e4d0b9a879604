package collector

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteSummary prints a human-readable run summary: a table of created
// drafts followed by the classified errors, if any.
func WriteSummary(w io.Writer, result *RunResult) {
	if len(result.Drafts) == 0 && !result.HasErrors() {
		fmt.Fprintln(w, "No drafts created - all invoices up to date.")
		return
	}

	if len(result.Drafts) > 0 {
		if result.DryRun {
			fmt.Fprintf(w, "[dry-run] Would create %d draft(s):\n\n", len(result.Drafts))
		} else {
			fmt.Fprintf(w, "Created %d draft(s):\n\n", len(result.Drafts))
		}

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INVOICE\tSTAGE\tCLIENT\tEMAIL\tAMOUNT\tOVERDUE")
		for _, d := range result.Drafts {
			fmt.Fprintf(tw, "%s\tDay %d\t%s\t%s\t%.2f %s\t%dd\n",
				d.InvoiceID, d.Stage, d.ClientName, d.ClientEmail, d.Amount, d.Currency, d.DaysOverdue)
		}
		tw.Flush()
	}

	if result.HasErrors() {
		fmt.Fprintf(w, "\n%d error(s):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", e.Error())
		}
	}

	if result.DryRun {
		fmt.Fprintln(w, "\nDry-run mode: no drafts were created and no tracking data was written.")
	}
}
