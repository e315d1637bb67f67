package tool

import (
	"fmt"
	"slices"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
)

var (
	allowedCurrencies = []string{"CNY", "USD", "EUR", "HKD", "JPY", "GBP"}
	booleanFlags      = []string{"TRUE", "FALSE"}
)

func verifyLicense(r contractx.LicenseRecord, now time.Time) contractx.VerificationResult {
	reject := func(format string, args ...any) contractx.VerificationResult {
		return contractx.VerificationResult{Verified: false, Reason: fmt.Sprintf(format, args...)}
	}

	if missing := r.MissingFields(); len(missing) > 0 {
		return reject("缺少必填字段：%s", strings.Join(missing, ", "))
	}
	if !contractx.ValidUSCC(r.USCC) {
		return reject("统一社会信用代码%s格式或校验位不正确", r.USCC)
	}
	if r.AcctFileNo1 != r.USCC || r.FileNo1 != r.USCC {
		return reject("证明文件编号与统一社会信用代码不一致")
	}
	if r.DepositorName != r.AcctName {
		return reject("存款人名称与账户名称不一致")
	}
	if !contractx.ValidCapital(r.RegisteredCapital) {
		return reject("注册资本%s格式不正确", r.RegisteredCapital)
	}
	for _, c := range []string{r.CcyType, r.RegCurrency} {
		if !slices.Contains(allowedCurrencies, c) {
			return reject("币种%s不受支持", c)
		}
	}
	for _, f := range []string{r.MicroEnterpriseFlag, r.SimpleOpenFlag, r.IsIdentification} {
		if !slices.Contains(booleanFlags, f) {
			return reject("标志字段取值%s无效", f)
		}
	}
	birth, err := time.Parse(time.DateOnly, r.LegalBirthDate)
	if err != nil || birth.After(now) {
		return reject("法定代表人出生日期%s无效", r.LegalBirthDate)
	}
	return contractx.VerificationResult{Verified: true, Reason: "营业执照信息验证通过"}
}
