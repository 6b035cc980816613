package offer

import "strings"

// Severity of a validation finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Validation codes
const (
	CodeMissingTitle              = "MISSING_TITLE"
	CodeMissingDescription        = "MISSING_DESCRIPTION"
	CodeMissingImages             = "MISSING_IMAGES"
	CodeFewImages                 = "FEW_IMAGES"
	CodeInvalidPrice              = "INVALID_PRICE"
	CodeInvalidStock              = "INVALID_STOCK"
	CodeOutOfStock                = "OUT_OF_STOCK"
	CodeMissingCategory           = "MISSING_CATEGORY"
	CodeMissingDelivery           = "MISSING_DELIVERY"
	CodeMissingPayment            = "MISSING_PAYMENT"
	CodeActiveWithErrors          = "ACTIVE_WITH_ERRORS"
	CodeMissingRequiredAttributes = "MISSING_REQUIRED_ATTRIBUTES"
)

// minRecommendedImages is the image count below which a warning is raised
const minRecommendedImages = 3

// ValidationError is one finding of the validation engine
type ValidationError struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidationResult is the outcome of a validation run
type ValidationResult struct {
	Status ValidationStatus
	Errors []ValidationError
}

// HasCode reports whether the result contains a finding with the given code
func (r ValidationResult) HasCode(code string) bool {
	for _, e := range r.Errors {
		if e.Type == code {
			return true
		}
	}
	return false
}

// Validate computes publish readiness. It is deterministic and has no side effects.
func Validate(o *Offer) ValidationResult {
	findings := make([]ValidationError, 0)
	add := func(sev Severity, code, msg string) {
		findings = append(findings, ValidationError{Type: code, Message: msg, Severity: sev})
	}

	if strings.TrimSpace(o.Title) == "" {
		add(SeverityError, CodeMissingTitle, "Offer title is required")
	}
	if strings.TrimSpace(o.Description) == "" && rawDescription(o.RawData) == "" {
		add(SeverityError, CodeMissingDescription, "Offer description is required")
	}

	switch n := len(o.Images); {
	case n == 0:
		add(SeverityError, CodeMissingImages, "At least one image is required")
	case n < minRecommendedImages:
		add(SeverityWarning, CodeFewImages, "Offers with fewer than 3 images convert worse")
	}

	if !o.Price.IsPositive() {
		add(SeverityError, CodeInvalidPrice, "Price must be greater than zero")
	}

	switch {
	case o.StockQuantity == nil || *o.StockQuantity < 0:
		add(SeverityError, CodeInvalidStock, "Stock quantity must be zero or more")
	case *o.StockQuantity == 0:
		add(SeverityWarning, CodeOutOfStock, "Offer is out of stock")
	}

	if strings.TrimSpace(o.CategoryID) == "" {
		add(SeverityError, CodeMissingCategory, "Category is required")
	}
	if !hasDelivery(o) {
		add(SeverityWarning, CodeMissingDelivery, "No delivery options configured")
	}
	if !hasPayment(o) {
		add(SeverityWarning, CodeMissingPayment, "No payment options configured")
	}
	if missing := missingRequiredParameters(o.RawData); len(missing) > 0 {
		add(SeverityError, CodeMissingRequiredAttributes,
			"Required parameters without value: "+strings.Join(missing, ", "))
	}

	// must run last: it depends on the errors found above
	if o.PublicationStatus == PublicationStatusActive && countSeverity(findings, SeverityError) > 0 {
		add(SeverityError, CodeActiveWithErrors, "Offer is published but has validation errors")
	}

	return ValidationResult{Status: deriveStatus(findings), Errors: findings}
}

func deriveStatus(findings []ValidationError) ValidationStatus {
	if countSeverity(findings, SeverityError) > 0 {
		return ValidationStatusErrors
	}
	if countSeverity(findings, SeverityWarning) > 0 {
		return ValidationStatusWarnings
	}
	return ValidationStatusReady
}

func countSeverity(findings []ValidationError, sev Severity) int {
	n := 0
	for _, f := range findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

func hasDelivery(o *Offer) bool {
	if isPresent(o.DeliveryOptions) {
		return true
	}
	return isPresent(o.RawData[keyDelivery]) || isPresent(lookup(o.RawData, keyRawData, keyDelivery))
}

func hasPayment(o *Offer) bool {
	if isPresent(o.PaymentOptions) {
		return true
	}
	return isPresent(o.RawData[keyPayments]) || isPresent(lookup(o.RawData, keyRawData, keyPayments))
}

// missingRequiredParameters lists the names (or ids) of required parameters without a value.
func missingRequiredParameters(raw RawPayload) []string {
	missing := make([]string, 0)
	for _, item := range asSlice(raw[keyParameters]) {
		p := asMap(item)
		if p == nil {
			continue
		}
		if required, _ := p["required"].(bool); !required {
			continue
		}
		if isPresent(p["values"]) || isPresent(p["valuesIds"]) || isPresent(p["rangeValue"]) || isPresent(p["value"]) {
			continue
		}
		name := asString(p[keyName])
		if name == "" {
			name = asString(p[keyID])
		}
		missing = append(missing, name)
	}
	return missing
}
