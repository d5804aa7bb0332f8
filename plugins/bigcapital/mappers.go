package bigcapital

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Mappers turn OCR'd document text into BigCapital payloads. Parsing is
// heuristic: the largest amount wins, the earliest date becomes the invoice
// date, and a missing value falls back to something safe rather than failing
// the sync.

var (
	amountCapture = []*regexp.Regexp{
		regexp.MustCompile(`(?i)total[:\s]+\$?([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`(?i)amount[:\s]+\$?([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`(?i)balance[:\s]+\$?([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`\$([0-9,]+\.?[0-9]*)`),
		regexp.MustCompile(`(?i)([0-9,]+\.?[0-9]*)\s*(?:usd|dollars?)`),
	}
	dateCapture = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:date|dated?)[:\s]+([0-9]{1,2}[/-][0-9]{1,2}[/-][0-9]{2,4})`),
		regexp.MustCompile(`([0-9]{1,2}[/-][0-9]{1,2}[/-][0-9]{2,4})`),
		regexp.MustCompile(`([0-9]{4}-[0-9]{1,2}-[0-9]{1,2})`),
	}
	invoiceNoCapture = []*regexp.Regexp{
		regexp.MustCompile(`(?i)invoice\s*#?[:\s]*([A-Z0-9-]+)`),
		regexp.MustCompile(`(?i)inv\s*#?[:\s]*([A-Z0-9-]+)`),
	}
	emailCapture = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneCapture = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)

	dateFormats = []string{"1/2/2006", "1-2-2006", "2006-1-2", "1/2/06", "1-2-06"}

	businessIndicators = map[string]bool{
		"inc": true, "llc": true, "corp": true, "ltd": true,
		"company": true, "co": true, "services": true, "group": true,
	}
)

// ExtractAmounts returns the distinct monetary amounts found in text, largest
// first.
func ExtractAmounts(text string) []float64 {
	seen := map[float64]bool{}
	var amounts []float64
	for _, p := range amountCapture {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			raw := strings.ReplaceAll(m[1], ",", "")
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || seen[v] {
				continue
			}
			seen[v] = true
			amounts = append(amounts, v)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(amounts)))
	return amounts
}

// ExtractDates returns the distinct dates found in text, earliest first.
func ExtractDates(text string) []time.Time {
	seen := map[time.Time]bool{}
	var dates []time.Time
	for _, p := range dateCapture {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			for _, layout := range dateFormats {
				d, err := time.Parse(layout, m[1])
				if err != nil {
					continue
				}
				if !seen[d] {
					seen[d] = true
					dates = append(dates, d)
				}
				break
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// ExtractInvoiceNumbers returns distinct invoice number candidates.
func ExtractInvoiceNumbers(text string) []string {
	seen := map[string]bool{}
	var numbers []string
	for _, p := range invoiceNoCapture {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				numbers = append(numbers, m[1])
			}
		}
	}
	return numbers
}

// ExtractContactInfo returns the first email and phone number found in text.
func ExtractContactInfo(text string) (email, phone string) {
	if m := emailCapture.FindString(text); m != "" {
		email = m
	}
	if m := phoneCapture.FindString(text); m != "" {
		phone = strings.TrimSpace(m)
	}
	return email, phone
}

// DocumentToExpense builds an expense payload from document text. The largest
// amount found becomes the expense amount; with no amounts the expense is
// created at zero for manual review.
func DocumentToExpense(title, reference, text string) *Expense {
	amounts := ExtractAmounts(text)
	dates := ExtractDates(text)

	amount := 0.0
	if len(amounts) > 0 {
		amount = amounts[0]
	}
	paymentDate := time.Now()
	if len(dates) > 0 {
		paymentDate = dates[0]
	}

	exp := &Expense{
		PaymentDate: paymentDate.Format("2006-01-02"),
		Amount:      amount,
		Description: title,
		Reference:   reference,
	}
	if email, _ := ExtractContactInfo(text); email != "" {
		exp.Description += " - Contact: " + email
	}
	return exp
}

// DocumentToInvoice builds an invoice payload from document text. Each
// extracted amount becomes a line item, capped at five; with no amounts a
// single zero entry keeps the invoice valid.
func DocumentToInvoice(title, reference, text string, customerID int) *Invoice {
	amounts := ExtractAmounts(text)
	dates := ExtractDates(text)
	numbers := ExtractInvoiceNumbers(text)

	invoiceDate := time.Now()
	dueDate := time.Now()
	if len(dates) > 0 {
		invoiceDate = dates[0]
	}
	if len(dates) > 1 {
		dueDate = dates[1]
	}

	inv := &Invoice{
		CustomerID:  customerID,
		InvoiceDate: invoiceDate.Format("2006-01-02"),
		DueDate:     dueDate.Format("2006-01-02"),
		Reference:   reference,
		Note:        title,
	}
	if len(numbers) > 0 {
		inv.InvoiceNumber = numbers[0]
	}

	if len(amounts) > 5 {
		amounts = amounts[:5]
	}
	for i, amount := range amounts {
		desc := title
		if len(amounts) > 1 {
			desc = fmt.Sprintf("Line item %d", i+1)
		}
		inv.Entries = append(inv.Entries, InvoiceEntry{
			Description: desc,
			Quantity:    1,
			Rate:        amount,
		})
	}
	if len(inv.Entries) == 0 {
		inv.Entries = append(inv.Entries, InvoiceEntry{
			Description: title,
			Quantity:    1,
			Rate:        0,
		})
	}
	return inv
}

// VendorFromDocument extracts a vendor contact from document text, or nil
// when no contact details are present.
func VendorFromDocument(title, text string) *Contact {
	email, phone := ExtractContactInfo(text)
	if email == "" && phone == "" {
		return nil
	}

	name := vendorName(title)
	return &Contact{
		DisplayName: name,
		ContactType: "vendor",
		Email:       email,
		Phone:       phone,
		CompanyName: name,
	}
}

// vendorName guesses a vendor name from a document title by cutting at the
// first business suffix ("Acme Supplies Inc - March" becomes "Acme Supplies
// Inc").
func vendorName(title string) string {
	parts := strings.Fields(title)
	if len(parts) == 0 {
		return "Unknown Vendor"
	}
	for i, part := range parts {
		if businessIndicators[strings.ToLower(strings.Trim(part, ".,"))] && i > 0 {
			return strings.Join(parts[:i+1], " ")
		}
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.Join(parts, " ")
}
