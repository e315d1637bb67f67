package license

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
)

var (
	chineseDigits = map[rune]int64{
		'零': 0, '〇': 0,
		'一': 1, '壹': 1,
		'二': 2, '贰': 2, '貳': 2, '两': 2,
		'三': 3, '叁': 3, '參': 3, '参': 3,
		'四': 4, '肆': 4,
		'五': 5, '伍': 5,
		'六': 6, '陆': 6, '陸': 6,
		'七': 7, '柒': 7,
		'八': 8, '捌': 8,
		'九': 9, '玖': 9,
	}
	sectionUnits = map[rune]int64{
		'十': 10, '拾': 10,
		'百': 100, '佰': 100,
		'千': 1000, '仟': 1000,
	}
	capitalNoise = []string{"注册资本", "人民币", "RMB", "CNY", "¥", "￥", ":", "：", ",", "，", " ", "\t", "整", "正"}

	// 13 integer digits plus 2 fractional digits.
	maxCapital = decimal.RequireFromString("9999999999999.99")

	wan = decimal.New(1, 4)
	yi  = decimal.New(1, 8)
)

// NormalizeCapital converts a registered-capital amount written with Arabic or Chinese
// numerals into the canonical two-decimal form, e.g. "壹拾万元" -> "100000.00".
// Amounts that cannot be read exactly, or that are zero, are ErrMalformedField.
func NormalizeCapital(raw string) (string, error) {
	s := strings.ToUpper(width.Narrow.String(strings.TrimSpace(raw)))
	for _, noise := range capitalNoise {
		s = strings.ReplaceAll(s, noise, "")
	}
	if s == "" {
		return "", fmt.Errorf("%w: registeredCapital is empty", contractx.ErrMalformedField)
	}

	amount, err := parseAmount(s)
	if err != nil {
		return "", fmt.Errorf("%w: registeredCapital %q: %v", contractx.ErrMalformedField, raw, err)
	}

	if !amount.Equal(amount.Truncate(2)) {
		return "", fmt.Errorf("%w: registeredCapital %q has more than two decimals", contractx.ErrMalformedField, raw)
	}
	if amount.Sign() <= 0 {
		return "", fmt.Errorf("%w: registeredCapital %q is zero", contractx.ErrMalformedField, raw)
	}
	if amount.GreaterThan(maxCapital) {
		return "", fmt.Errorf("%w: registeredCapital %q is out of range", contractx.ErrMalformedField, raw)
	}
	return amount.StringFixed(2), nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	var (
		total      = decimal.Zero
		section    = decimal.Zero
		number     = decimal.Zero
		frac       = decimal.Zero
		integer    *decimal.Decimal
		afterDigit bool
	)

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if isArabic(r) {
			if afterDigit {
				return decimal.Zero, fmt.Errorf("unexpected digit at %d", i)
			}
			j := i
			for j < len(runes) && isArabic(runes[j]) {
				j++
			}
			v, err := decimal.NewFromString(string(runes[i:j]))
			if err != nil {
				return decimal.Zero, fmt.Errorf("invalid number %q", string(runes[i:j]))
			}
			number = v
			afterDigit = true
			i = j - 1
			continue
		}

		if d, ok := chineseDigits[r]; ok {
			if afterDigit && number.Sign() != 0 {
				return decimal.Zero, fmt.Errorf("unexpected digit %q", r)
			}
			number = decimal.NewFromInt(d)
			afterDigit = true
			continue
		}

		if unit, ok := sectionUnits[r]; ok {
			if number.IsZero() {
				number = decimal.NewFromInt(1)
			}
			section = section.Add(number.Mul(decimal.NewFromInt(unit)))
			number = decimal.Zero
			afterDigit = false
			continue
		}

		switch r {
		case '万', '萬':
			total = total.Add(section.Add(number).Mul(wan))
			section, number = decimal.Zero, decimal.Zero
		case '亿', '億':
			total = total.Add(section).Add(number).Mul(yi)
			section, number = decimal.Zero, decimal.Zero
		case '元', '圆', '圓':
			if integer != nil {
				return decimal.Zero, fmt.Errorf("repeated currency unit")
			}
			v := total.Add(section).Add(number)
			integer = &v
			total, section, number = decimal.Zero, decimal.Zero, decimal.Zero
		case '角':
			frac = frac.Add(number.Shift(-1))
			number = decimal.Zero
		case '分':
			frac = frac.Add(number.Shift(-2))
			number = decimal.Zero
		default:
			return decimal.Zero, fmt.Errorf("unexpected character %q", r)
		}
		afterDigit = false
	}

	rest := total.Add(section).Add(number)
	if integer == nil {
		return rest.Add(frac), nil
	}
	if !rest.IsZero() {
		return decimal.Zero, fmt.Errorf("digits after currency unit without 角/分")
	}
	return integer.Add(frac), nil
}

func isArabic(r rune) bool {
	return (r >= '0' && r <= '9') || r == '.'
}
