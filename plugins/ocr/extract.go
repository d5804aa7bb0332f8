package ocr

import (
	"regexp"
	"strings"

	"github.com/docbridge/docbridge"
)

var (
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$[\d,]+\.?\d*`),
		regexp.MustCompile(`[\d,]+\.?\d*\s*(?:USD|EUR|GBP)`),
		regexp.MustCompile(`(?i)Total[:\s]*\$?[\d,]+\.?\d*`),
		regexp.MustCompile(`(?i)Amount[:\s]*\$?[\d,]+\.?\d*`),
	}
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`),
		regexp.MustCompile(`\d{4}[/-]\d{1,2}[/-]\d{1,2}`),
		regexp.MustCompile(`[A-Za-z]{3,9}\s+\d{1,2},?\s+\d{2,4}`),
	}
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\+?[\d\s\-()]{10,}`)
	nonDigit     = regexp.MustCompile(`\D`)

	invoiceKeywords = []string{"invoice", "bill", "receipt", "payment due", "total amount"}
	expenseKeywords = []string{"expense", "reimbursement", "purchase"}
)

// ExtractDocumentInfo pulls structured accounting hints out of raw document
// text: monetary amounts, dates, contact details, and a best-effort document
// kind based on keywords.
func ExtractDocumentInfo(text string) *docbridge.DocumentInfo {
	info := &docbridge.DocumentInfo{Kind: "unknown"}

	for _, p := range amountPatterns {
		info.Amounts = append(info.Amounts, p.FindAllString(text, -1)...)
	}
	for _, p := range datePatterns {
		info.Dates = append(info.Dates, p.FindAllString(text, -1)...)
	}
	info.Emails = emailPattern.FindAllString(text, -1)

	for _, candidate := range phonePattern.FindAllString(text, -1) {
		if len(nonDigit.ReplaceAllString(candidate, "")) >= 10 {
			info.Phones = append(info.Phones, strings.TrimSpace(candidate))
		}
	}

	lower := strings.ToLower(text)
	if containsAny(lower, invoiceKeywords) {
		info.Kind = "invoice"
	} else if containsAny(lower, expenseKeywords) {
		info.Kind = "expense"
	}
	return info
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
