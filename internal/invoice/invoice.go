package invoice

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Item is one billable line on an invoice.
type Item struct {
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Rate        float64 `json:"rate"`
}

// ExtraField is a free-form name/value pair rendered onto the invoice.
type ExtraField struct {
	N string `json:"n"`
	V string `json:"v"`
}

// PrintInvoice is a fully populated invoice ready to render. The
// caller computes items and totals; nothing here reads the database.
type PrintInvoice struct {
	ID          string       `json:"id"`
	Date        string       `json:"date"`
	DueDate     *string      `json:"due_date"`
	Payee       string       `json:"payee"`
	Payer       string       `json:"payer"`
	Items       []Item       `json:"items"`
	ExtraFields []ExtraField `json:"extra_fields"`
}

// Renderer turns invoices into PDFs by generating a typst document and
// running the typst binary over it.
type Renderer struct {
	Binary string
	Dir    string
}

// NewRenderer creates a Renderer writing under dir.
func NewRenderer(binary, dir string) *Renderer {
	return &Renderer{Binary: binary, Dir: dir}
}

// Render writes the typst source for the invoice and compiles it,
// returning the PDF path. A non-zero exit from typst is an error and is
// never retried.
func (r *Renderer) Render(ctx context.Context, pi PrintInvoice) (string, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create invoice dir: %w", err)
	}

	srcPath := filepath.Join(r.Dir, pi.ID+".typ")
	pdfPath := filepath.Join(r.Dir, pi.ID+".pdf")

	if err := os.WriteFile(srcPath, []byte(Document(pi)), 0o644); err != nil {
		return "", fmt.Errorf("write invoice source: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.Binary, "compile", srcPath, "--root", ".")
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("typst compile %s: %w: %s", srcPath, err, strings.TrimSpace(string(out)))
	}
	return pdfPath, nil
}

// Document builds the typst source for the invoice. The payee and
// payer blocks are padded with trailing newlines to the same line
// count so the template's two-column header stays aligned.
func Document(pi PrintInvoice) string {
	payee, payer := padBlocks(pi.Payee, pi.Payer)

	var items strings.Builder
	for _, it := range pi.Items {
		fmt.Fprintf(&items, `
    (
      item: %q,
      dur-min: 0,
      hours: %v,
      rate: %v,
    ),
    `, it.Description, it.Duration, it.Rate)
	}

	dueDate := "none"
	if pi.DueDate != nil {
		dueDate = fmt.Sprintf("%q", *pi.DueDate)
	}

	var extras strings.Builder
	extras.WriteString("( ")
	for _, ef := range pi.ExtraFields {
		fmt.Fprintf(&extras, "(%q, %q), ", ef.N, ef.V)
	}
	extras.WriteString(")")

	return fmt.Sprintf(`
#import "../invoice.typ": *


#let biller = %q
#let recipient = %q


#let table-data = ( %s )

#show: invoice.with(
  language: "en",
  banner-image: none,
  invoice-id: %q,
  issuing-date: %q,
  due-date: %s,
  extraFields: %s,
  biller: biller,
  hourly-rate: 100,
  recipient: recipient,
  tax: 0,
  items: table-data,
  styling: ( font: none ),
)`, payee, payer, items.String(), pi.ID, pi.Date, dueDate, extras.String())
}

func padBlocks(payee, payer string) (string, string) {
	eeLines := strings.Count(payee, "\n") + 1
	erLines := strings.Count(payer, "\n") + 1
	switch {
	case eeLines < erLines:
		return payee + strings.Repeat("\n", erLines-eeLines), payer
	case eeLines > erLines:
		return payee, payer + strings.Repeat("\n", eeLines-erLines)
	default:
		return payee, payer
	}
}
