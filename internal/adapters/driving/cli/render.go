package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
)

// timeUnit rounds durations in listings.
const timeUnit = time.Millisecond

// render writes a query result as text. --count collapses to the count
// alone; --line-numbers prefixes body lines with their source line.
func render(out io.Writer, res driving.Result) {
	if res.CountOnly {
		fmt.Fprintln(out, res.Count)
		return
	}
	if res.Message != "" {
		fmt.Fprintln(out, res.Message)
		if res.Count < 0 {
			return
		}
	}
	if len(res.Items) == 0 {
		if res.Message == "" {
			fmt.Fprintln(out, "No results found.")
		}
		return
	}

	for _, item := range res.Items {
		if item.Location != "" {
			fmt.Fprintf(out, "  %s (%s)\n", item.Name, item.Location)
		} else {
			fmt.Fprintf(out, "  %s\n", item.Name)
		}
		for _, f := range item.Fields {
			fmt.Fprintf(out, "    %s: %s\n", f.Key, f.Value)
		}
		if item.Body != nil {
			fmt.Fprintln(out, "    --- Body ---")
			for i, line := range item.Body {
				if res.LineNumbers {
					fmt.Fprintf(out, "    %6d  %s\n", item.BodyStart+i, line)
				} else {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
			fmt.Fprintln(out, "    --- End ---")
		}
	}

	plural := "s"
	if res.Count == 1 {
		plural = ""
	}
	fmt.Fprintf(out, "\n(%d result%s)\n", res.Count, plural)
}
