package bigcapital

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceText = `Invoice #INV-1042
Acme Supplies Inc
Date: 03/15/2024
Due: 04/14/2024

Subtotal: $1,100.00
Total: $1,234.56
Contact: billing@acme.example.com phone (555) 123-4567`

func TestExtractAmounts(t *testing.T) {
	amounts := ExtractAmounts(invoiceText)

	require.NotEmpty(t, amounts)
	assert.Equal(t, 1234.56, amounts[0], "largest amount first")
	assert.Contains(t, amounts, 1100.00)
}

func TestExtractAmounts_Deduplicates(t *testing.T) {
	amounts := ExtractAmounts("Total: $50.00 Amount: $50.00")

	assert.Equal(t, []float64{50}, amounts)
}

func TestExtractDates(t *testing.T) {
	dates := ExtractDates(invoiceText)

	require.Len(t, dates, 2)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2024, 4, 14, 0, 0, 0, 0, time.UTC), dates[1])
}

func TestExtractInvoiceNumbers(t *testing.T) {
	numbers := ExtractInvoiceNumbers(invoiceText)

	assert.Contains(t, numbers, "INV-1042")
}

func TestExtractContactInfo(t *testing.T) {
	email, phone := ExtractContactInfo(invoiceText)

	assert.Equal(t, "billing@acme.example.com", email)
	assert.NotEmpty(t, phone)
}

func TestDocumentToExpense(t *testing.T) {
	exp := DocumentToExpense("Office chairs", "Paperless-42", invoiceText)

	assert.Equal(t, 1234.56, exp.Amount)
	assert.Equal(t, "2024-03-15", exp.PaymentDate)
	assert.Equal(t, "Paperless-42", exp.Reference)
	assert.Contains(t, exp.Description, "Office chairs")
	assert.Contains(t, exp.Description, "billing@acme.example.com")
}

func TestDocumentToExpense_NoAmounts(t *testing.T) {
	exp := DocumentToExpense("Mystery receipt", "Paperless-43", "nothing useful here")

	assert.Equal(t, 0.0, exp.Amount)
	assert.Equal(t, "Mystery receipt", exp.Description)
}

func TestDocumentToInvoice(t *testing.T) {
	inv := DocumentToInvoice("March order", "Paperless-44", invoiceText, 9)

	assert.Equal(t, 9, inv.CustomerID)
	assert.Equal(t, "2024-03-15", inv.InvoiceDate)
	assert.Equal(t, "2024-04-14", inv.DueDate)
	assert.Equal(t, "INV-1042", inv.InvoiceNumber)
	require.Len(t, inv.Entries, 2)
	assert.Equal(t, 1234.56, inv.Entries[0].Rate)
}

func TestDocumentToInvoice_PlaceholderEntry(t *testing.T) {
	inv := DocumentToInvoice("Empty doc", "Paperless-45", "no data", 1)

	require.Len(t, inv.Entries, 1)
	assert.Equal(t, 0.0, inv.Entries[0].Rate)
	assert.Equal(t, "Empty doc", inv.Entries[0].Description)
}

func TestVendorFromDocument(t *testing.T) {
	contact := VendorFromDocument("Acme Supplies Inc March Invoice", invoiceText)

	require.NotNil(t, contact)
	assert.Equal(t, "Acme Supplies Inc", contact.DisplayName)
	assert.Equal(t, "vendor", contact.ContactType)
	assert.Equal(t, "billing@acme.example.com", contact.Email)
}

func TestVendorFromDocument_NoContactDetails(t *testing.T) {
	assert.Nil(t, VendorFromDocument("Some title", "plain text"))
}
