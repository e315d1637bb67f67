package contract

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

type recordField struct {
	name string
	ref  func(*LicenseRecord) *string
}

var recordFields = []recordField{
	{"acctName", func(r *LicenseRecord) *string { return &r.AcctName }},
	{"acctNo", func(r *LicenseRecord) *string { return &r.AcctNo }},
	{"acctType", func(r *LicenseRecord) *string { return &r.AcctType }},
	{"billType", func(r *LicenseRecord) *string { return &r.BillType }},
	{"bankCode", func(r *LicenseRecord) *string { return &r.BankCode }},
	{"bankName", func(r *LicenseRecord) *string { return &r.BankName }},
	{"userCode", func(r *LicenseRecord) *string { return &r.UserCode }},
	{"userName", func(r *LicenseRecord) *string { return &r.UserName }},
	{"institutionCode", func(r *LicenseRecord) *string { return &r.InstitutionCode }},
	{"institutionName", func(r *LicenseRecord) *string { return &r.InstitutionName }},
	{"ccyType", func(r *LicenseRecord) *string { return &r.CcyType }},
	{"microEnterpriseFlag", func(r *LicenseRecord) *string { return &r.MicroEnterpriseFlag }},
	{"simpleOpenFlag", func(r *LicenseRecord) *string { return &r.SimpleOpenFlag }},
	{"acctFileNo1", func(r *LicenseRecord) *string { return &r.AcctFileNo1 }},
	{"acctFileType1", func(r *LicenseRecord) *string { return &r.AcctFileType1 }},
	{"depositorName", func(r *LicenseRecord) *string { return &r.DepositorName }},
	{"depositorType", func(r *LicenseRecord) *string { return &r.DepositorType }},
	{"regFullAddress", func(r *LicenseRecord) *string { return &r.RegFullAddress }},
	{"telephone", func(r *LicenseRecord) *string { return &r.Telephone }},
	{"uscc", func(r *LicenseRecord) *string { return &r.USCC }},
	{"isIdentification", func(r *LicenseRecord) *string { return &r.IsIdentification }},
	{"regCurrency", func(r *LicenseRecord) *string { return &r.RegCurrency }},
	{"registeredCapital", func(r *LicenseRecord) *string { return &r.RegisteredCapital }},
	{"regAreaCode", func(r *LicenseRecord) *string { return &r.RegAreaCode }},
	{"fileNo1", func(r *LicenseRecord) *string { return &r.FileNo1 }},
	{"fileType1", func(r *LicenseRecord) *string { return &r.FileType1 }},
	{"legalName", func(r *LicenseRecord) *string { return &r.LegalName }},
	{"legalNation", func(r *LicenseRecord) *string { return &r.LegalNation }},
	{"legalIdcardNo", func(r *LicenseRecord) *string { return &r.LegalIDCardNo }},
	{"legalIdcardType", func(r *LicenseRecord) *string { return &r.LegalIDCardType }},
	{"legalBirthDate", func(r *LicenseRecord) *string { return &r.LegalBirthDate }},
}

// FieldNames lists the wire names of every LicenseRecord field in contract order.
func FieldNames() []string {
	names := make([]string, 0, len(recordFields))
	for _, f := range recordFields {
		names = append(names, f.name)
	}
	return names
}

// Get returns the value of the named field and whether the name is known.
func (r LicenseRecord) Get(name string) (string, bool) {
	for _, f := range recordFields {
		if f.name == name {
			return *f.ref(&r), true
		}
	}
	return "", false
}

// Set assigns the named field. Unknown names are reported as ErrValidation.
func (r *LicenseRecord) Set(name string, value string) error {
	for _, f := range recordFields {
		if f.name == name {
			*f.ref(r) = value
			return nil
		}
	}
	return fmt.Errorf("%w: unknown license field %q", ErrValidation, name)
}

// NormalizeRegistrationID folds a registration id to its canonical form: half-width,
// no whitespace, upper case. "９１３５ 0100m000100y43" becomes "91350100M000100Y43".
func NormalizeRegistrationID(s string) string {
	s = width.Narrow.String(s)
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// TrimSpace trims every field in place.
func (r *LicenseRecord) TrimSpace() {
	for _, f := range recordFields {
		p := f.ref(r)
		*p = strings.TrimSpace(*p)
	}
}

// MissingFields returns required fields that are still empty. acctNo is assigned by
// the bank and is never required before opening.
func (r LicenseRecord) MissingFields() []string {
	var missing []string
	for _, f := range recordFields {
		if f.name == "acctNo" {
			continue
		}
		if strings.TrimSpace(*f.ref(&r)) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

var capitalPattern = regexp.MustCompile(`^(0|[1-9][0-9]{0,12})\.[0-9]{2}$`)

// ValidCapital reports whether s is a canonical non-zero registered capital amount.
func ValidCapital(s string) bool {
	if !capitalPattern.MatchString(s) {
		return false
	}
	return strings.Trim(s, "0.") != ""
}

const usccCharset = "0123456789ABCDEFGHJKLMNPQRTUWXY"

var usccWeights = [17]int{1, 3, 9, 27, 19, 26, 16, 17, 20, 29, 25, 13, 8, 24, 10, 30, 28}

// ValidUSCC checks the 18-character unified social credit code and its GB 32100 check character.
func ValidUSCC(code string) bool {
	if len(code) != 18 {
		return false
	}
	sum := 0
	for i := 0; i < 17; i++ {
		v := strings.IndexByte(usccCharset, code[i])
		if v < 0 {
			return false
		}
		sum += v * usccWeights[i]
	}
	check := 31 - sum%31
	if check == 31 {
		check = 0
	}
	return code[17] == usccCharset[check]
}
