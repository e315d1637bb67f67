package license

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
)

func TestNormalizeCapital(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"壹拾万元":             "100000.00",
		"100000.00":        "100000.00",
		"100000":           "100000.00",
		"人民币壹佰万元整":         "1000000.00",
		"1,000,000.5":      "1000000.50",
		"１００万元":            "1000000.00",
		"10.5万":            "105000.00",
		"五十万":              "500000.00",
		"十万":               "100000.00",
		"三千五百万元":           "35000000.00",
		"壹亿贰仟万元":           "120000000.00",
		"3亿2000万":          "320000000.00",
		"一千零五":             "1005.00",
		"壹拾万零伍仟元":          "105000.00",
		"伍拾万元伍角":           "500000.50",
		"5元5角3分":           "5.53",
		"注册资本：RMB 200万元":   "2000000.00",
		"9999999999999.99": "9999999999999.99",
		"0.01":             "0.01",
		"3角1分":             "0.31",
		"1234567.89万":      "12345678900.00",
	}
	for in, want := range cases {
		got, err := NormalizeCapital(in)
		if err != nil {
			t.Fatalf("NormalizeCapital(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeCapital(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeCapitalMalformed(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"零",
		"0.00",
		"abc",
		"一二",
		"12.345",
		"1.2.3",
		"10000000000000",
		"五元五",
		"壹万元贰元",
		"0.005",
		"9999999999999.995",
		"1000亿亿",
	}
	for _, in := range inputs {
		_, err := NormalizeCapital(in)
		if !errors.Is(err, contractx.ErrMalformedField) {
			t.Fatalf("NormalizeCapital(%q) error = %v, want ErrMalformedField", in, err)
		}
	}
}
