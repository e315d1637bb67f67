package license

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/viper"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
)

// Defaults maps a LicenseRecord field name to the literal used when the field is not
// visible on the license.
type Defaults map[string]string

// Fields that identify the company or carry money are read from the license or not at all.
var undefaultable = []string{
	"acctName", "depositorName", "uscc", "acctFileNo1", "fileNo1",
	"registeredCapital", "regFullAddress", "legalName",
}

func BuiltinDefaults() Defaults {
	return Defaults{
		"acctNo":              "",
		"acctType":            "PRDA",
		"billType":            "OPEN",
		"bankCode":            "313333000016",
		"bankName":            "某某银行",
		"userCode":            "9999",
		"userName":            "系统管理员",
		"institutionCode":     "0000",
		"institutionName":     "某某银行",
		"ccyType":             "CNY",
		"microEnterpriseFlag": "TRUE",
		"simpleOpenFlag":      "FALSE",
		"acctFileType1":       "BIZL",
		"depositorType":       "LPEP",
		"telephone":           "0574-00000000",
		"isIdentification":    "FALSE",
		"regCurrency":         "CNY",
		"regAreaCode":         "330281",
		"fileType1":           "BIZL",
		"legalNation":         "CHN",
		"legalIdcardType":     "01",
		"legalIdcardNo":       "330281199001011234",
		"legalBirthDate":      "1990-01-01",
	}
}

// LoadDefaults reads a YAML/JSON/TOML file of field defaults and layers it over the
// built-in table. An empty path returns the built-in table.
func LoadDefaults(path string) (Defaults, error) {
	out := BuiltinDefaults()
	path = strings.TrimSpace(path)
	if path == "" {
		return out, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read defaults file %s: %w", path, err)
	}

	byLower := make(map[string]string, len(contractx.FieldNames()))
	for _, name := range contractx.FieldNames() {
		byLower[strings.ToLower(name)] = name
	}

	for _, key := range v.AllKeys() {
		name, ok := byLower[key]
		if !ok {
			return nil, fmt.Errorf("%w: defaults file %s: unknown field %q", contractx.ErrValidation, path, key)
		}
		if slices.Contains(undefaultable, name) {
			return nil, fmt.Errorf("%w: defaults file %s: field %q cannot have a default", contractx.ErrValidation, path, name)
		}
		out[name] = strings.TrimSpace(v.GetString(key))
	}
	return out, nil
}

// Apply fills every empty field of r that has a default.
func (d Defaults) Apply(r *contractx.LicenseRecord) {
	for _, name := range slices.Sorted(maps.Keys(d)) {
		if slices.Contains(undefaultable, name) {
			continue
		}
		if cur, ok := r.Get(name); ok && cur == "" {
			_ = r.Set(name, d[name])
		}
	}
}
