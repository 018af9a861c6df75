package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	apphttp "cassa/internal/http"
	"cassa/internal/poller"
)

const tableLimit = 20

type pendingLister interface {
	Pending(ctx context.Context, limit int) ([]apphttp.ExpenseResponse, error)
}

// terminalNotifier prints a coloured alert line, rings the bell and then
// shows what is waiting.
type terminalNotifier struct {
	out    io.Writer
	bell   bool
	alert  *color.Color
	lister pendingLister
}

func newTerminalNotifier(out io.Writer, bell bool, lister pendingLister) *terminalNotifier {
	return &terminalNotifier{
		out:    out,
		bell:   bell,
		alert:  color.New(color.FgHiRed, color.Bold),
		lister: lister,
	}
}

func (n *terminalNotifier) Notify(ctx context.Context, a poller.Alert) error {
	if n.bell {
		if _, err := io.WriteString(n.out, "\a"); err != nil {
			return err
		}
	}
	noun := "approvals"
	if a.Delta == 1 {
		noun = "approval"
	}
	if _, err := n.alert.Fprintf(n.out, "%s  %d new %s pending (%d total)\n", a.At.Format("15:04:05"), a.Delta, noun, a.Current); err != nil {
		return err
	}

	if n.lister == nil {
		return nil
	}
	pending, err := n.lister.Pending(ctx, tableLimit)
	if err != nil {
		return fmt.Errorf("list pending approvals: %w", err)
	}
	renderPending(n.out, pending)
	return nil
}

// renderPending draws the pending expenses as a table.
func renderPending(w io.Writer, pending []apphttp.ExpenseResponse) {
	if len(pending) == 0 {
		fmt.Fprintln(w, "No approvals pending.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Date", "User", "Description", "Amount", "Invoice"})
	for _, e := range pending {
		invoice := ""
		if e.InvoiceURL != "" {
			invoice = "yes"
		}
		t.AppendRow(table.Row{e.ID, e.Date, "#" + strconv.FormatInt(e.UserID, 10), e.Description, e.Amount, invoice})
	}
	t.AppendSeparator()
	t.AppendFooter(table.Row{"", "", "", text.Bold.Sprint("Shown"), text.Bold.Sprint(len(pending)), ""})

	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
	})
	t.Render()
}
