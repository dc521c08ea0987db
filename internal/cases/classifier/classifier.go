// Package classifier maps an uploaded file name to a document category and
// type label. Matching is a case-insensitive substring search over an ordered
// rule table; the first matching rule wins. The OCR collaborator later
// attaches its own classification next to this one.
package classifier

import (
	"strings"

	"kycreview/internal/cases/models"
)

// Result is the classification of one file name.
type Result struct {
	Category     models.Category
	DocumentType string
}

type rule struct {
	keywords []string
	result   Result
}

// rules is evaluated top to bottom. Order matters: "bank_statement_letter"
// classifies as a bank statement, not an employment letter.
var rules = []rule{
	{[]string{"passport", "license", "id"}, Result{models.CategoryPrimaryID, "Identity Document"}},
	{[]string{"utility", "bill", "address"}, Result{models.CategoryAddressVerification, "Address Proof"}},
	{[]string{"bank", "statement"}, Result{models.CategoryBankStatement, "Financial Document"}},
	{[]string{"tax", "return"}, Result{models.CategoryIncomeProof, "Tax Document"}},
	{[]string{"employment", "letter"}, Result{models.CategoryIncomeProof, "Employment Verification"}},
	{[]string{"business", "registration"}, Result{models.CategoryBusinessVerification, "Business Document"}},
	{[]string{"property", "deed"}, Result{models.CategoryWealthVerification, "Asset Document"}},
}

var fallback = Result{models.CategoryOther, "Other Document"}

// Classify returns the category and document type for filename.
func Classify(filename string) Result {
	name := strings.ToLower(filename)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(name, kw) {
				return r.result
			}
		}
	}
	return fallback
}
