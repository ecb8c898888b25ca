package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"onboarding-flow/internal/models"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
)

// DateLayouts are the accepted answer date formats.
var DateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

// CheckRule applies one declared rule to a raw answer value.
// It returns the human-readable failure, or "" when the rule holds.
func CheckRule(rule models.Rule, value interface{}) string {
	msg := func(def string, args ...interface{}) string {
		if rule.Message != "" {
			return rule.Message
		}
		return fmt.Sprintf(def, args...)
	}

	switch rule.Kind {
	case models.RulePattern:
		re, err := regexp.Compile(rule.Pattern)
		if err != nil || !re.MatchString(Stringify(value)) {
			return msg("Invalid format")
		}
	case models.RuleMinLength:
		if utf8.RuneCountInString(Stringify(value)) < int(rule.Limit) {
			return msg("Must be at least %d characters", int(rule.Limit))
		}
	case models.RuleMaxLength:
		if utf8.RuneCountInString(Stringify(value)) > int(rule.Limit) {
			return msg("Must be at most %d characters", int(rule.Limit))
		}
	case models.RuleMin:
		n, ok := models.ToFloat(value)
		if !ok {
			return msg("Must be a number")
		}
		if n < rule.Limit {
			return msg("Must be at least %g", rule.Limit)
		}
	case models.RuleMax:
		n, ok := models.ToFloat(value)
		if !ok {
			return msg("Must be a number")
		}
		if n > rule.Limit {
			return msg("Must be at most %g", rule.Limit)
		}
	case models.RuleMinItems:
		if itemCount(value) < int(rule.Limit) {
			return msg("Select at least %d", int(rule.Limit))
		}
	case models.RuleMaxItems:
		if itemCount(value) > int(rule.Limit) {
			return msg("Select at most %d", int(rule.Limit))
		}
	case models.RuleEmail:
		if !ValidateEmail(Stringify(value)) {
			return msg("Invalid e-mail address")
		}
	case models.RulePhone:
		if !ValidatePhone(Stringify(value)) {
			return msg("Invalid phone number")
		}
	case models.RuleCPF:
		if !ValidateCPF(Stringify(value)) {
			return msg("Invalid CPF")
		}
	case models.RulePastDate:
		t, ok := ParseDate(Stringify(value))
		if !ok {
			return msg("Invalid date")
		}
		if !t.Before(time.Now()) {
			return msg("Date must be in the past")
		}
	case models.RuleSchema:
		result, err := ValidateSchema(rule.Schema, value)
		if err != nil {
			return msg("Invalid value")
		}
		if !result.Valid {
			return msg("%s", result.FirstMessage())
		}
	default:
		return msg("Unknown validation rule %q", rule.Kind)
	}
	return ""
}

// CheckRuleDefinition reports a rule that can never be evaluated, for catalog linting.
func CheckRuleDefinition(rule models.Rule) error {
	switch rule.Kind {
	case models.RulePattern:
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", rule.Pattern, err)
		}
	case models.RuleSchema:
		return CompileSchema(rule.Schema)
	case models.RuleMinLength, models.RuleMaxLength, models.RuleMinItems, models.RuleMaxItems:
		if rule.Limit < 0 {
			return fmt.Errorf("%s limit must not be negative", rule.Kind)
		}
	case models.RuleMin, models.RuleMax, models.RuleEmail, models.RulePhone,
		models.RuleCPF, models.RulePastDate:
	default:
		return fmt.Errorf("unknown rule kind %q", rule.Kind)
	}
	return nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidateCPF checks a Brazilian taxpayer number, masked or not, by its two check digits.
func ValidateCPF(cpf string) bool {
	d := Digits(cpf)
	if len(d) != 11 {
		return false
	}
	if strings.Count(d, d[:1]) == 11 {
		return false
	}

	check := func(n int) byte {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * (n + 1 - i)
		}
		rem := sum % 11
		if rem < 2 {
			return '0'
		}
		return byte('0' + 11 - rem)
	}

	return d[9] == check(9) && d[10] == check(10)
}

// Digits strips every non-digit, undoing input masks.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseDate accepts any of DateLayouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Stringify renders an answer as text. Whole JSON numbers keep every digit.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func itemCount(v interface{}) int {
	switch t := v.(type) {
	case []interface{}:
		return len(t)
	case []string:
		return len(t)
	case nil:
		return 0
	}
	return 1
}
