package invoice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadBlocksEqualizesLineCounts(t *testing.T) {
	payee, payer := padBlocks("Ada\nLovelace", "ACME Corp\nFunding Dept\nBerlin\nGermany")
	assert.Equal(t, strings.Count(payee, "\n"), strings.Count(payer, "\n"))
	assert.True(t, strings.HasPrefix(payee, "Ada\nLovelace"))

	payee, payer = padBlocks("A\nB\nC", "X")
	assert.Equal(t, strings.Count(payee, "\n"), strings.Count(payer, "\n"))
	assert.True(t, strings.HasPrefix(payer, "X"))

	payee, payer = padBlocks("same", "size")
	assert.Equal(t, "same", payee)
	assert.Equal(t, "size", payer)
}

func TestDocumentContents(t *testing.T) {
	due := "2026-10-01"
	doc := Document(PrintInvoice{
		ID:      "INV-007",
		Date:    "2026-09-01",
		DueDate: &due,
		Payee:   "Ada Lovelace",
		Payer:   "ACME Corp",
		Items: []Item{
			{Description: "development", Duration: 12.5, Rate: 95},
		},
		ExtraFields: []ExtraField{{N: "VAT", V: "DE123"}},
	})

	assert.Contains(t, doc, `invoice-id: "INV-007"`)
	assert.Contains(t, doc, `issuing-date: "2026-09-01"`)
	assert.Contains(t, doc, `due-date: "2026-10-01"`)
	assert.Contains(t, doc, `item: "development"`)
	assert.Contains(t, doc, `("VAT", "DE123")`)
	assert.Contains(t, doc, "Ada Lovelace")
	assert.Contains(t, doc, "ACME Corp")
}

func TestDocumentNoDueDate(t *testing.T) {
	doc := Document(PrintInvoice{ID: "INV-001", Date: "2026-09-01"})
	assert.Contains(t, doc, "due-date: none")
}
