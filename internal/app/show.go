package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created (UTC)\tAccount\tMarketplace\tKind\tStatus\tFindings\tMessage")

	for _, al := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s/%s\t%s\t%s\t%d\t%s\n",
			al.CreatedAt.UTC().Format(time.RFC3339),
			al.AccountID,
			al.Region,
			al.Country,
			al.Kind.Label(),
			al.Status,
			al.Payload.Count(),
			sanitizeInline(al.Message),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
