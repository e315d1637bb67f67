package contract

import "time"

type AgentType string

const (
	AgentTypeClassifier AgentType = "classifier"
	AgentTypeExtractor  AgentType = "extractor"
)

type Intent string

const (
	IntentOpenAccount   Intent = "open_account"
	IntentCloseAccount  Intent = "close_account"
	IntentUploadLicense Intent = "upload_license"
	IntentUnknown       Intent = "unknown"
)

var Intents = []Intent{IntentOpenAccount, IntentCloseAccount, IntentUploadLicense, IntentUnknown}

func (i Intent) Valid() bool {
	for _, v := range Intents {
		if i == v {
			return true
		}
	}
	return false
}

type IntentResult struct {
	Intent    Intent `json:"intent"`
	Reasoning string `json:"reasoning"`
}

// LicenseRecord mirrors the account-opening request body of the bank's AMS endpoint.
// JSON names are fixed by that contract.
type LicenseRecord struct {
	AcctName            string `json:"acctName"`
	AcctNo              string `json:"acctNo"`
	AcctType            string `json:"acctType"`
	BillType            string `json:"billType"`
	BankCode            string `json:"bankCode"`
	BankName            string `json:"bankName"`
	UserCode            string `json:"userCode"`
	UserName            string `json:"userName"`
	InstitutionCode     string `json:"institutionCode"`
	InstitutionName     string `json:"institutionName"`
	CcyType             string `json:"ccyType"`
	MicroEnterpriseFlag string `json:"microEnterpriseFlag"`
	SimpleOpenFlag      string `json:"simpleOpenFlag"`
	AcctFileNo1         string `json:"acctFileNo1"`
	AcctFileType1       string `json:"acctFileType1"`
	DepositorName       string `json:"depositorName"`
	DepositorType       string `json:"depositorType"`
	RegFullAddress      string `json:"regFullAddress"`
	Telephone           string `json:"telephone"`
	USCC                string `json:"uscc"`
	IsIdentification    string `json:"isIdentification"`
	RegCurrency         string `json:"regCurrency"`
	RegisteredCapital   string `json:"registeredCapital"`
	RegAreaCode         string `json:"regAreaCode"`
	FileNo1             string `json:"fileNo1"`
	FileType1           string `json:"fileType1"`
	LegalName           string `json:"legalName"`
	LegalNation         string `json:"legalNation"`
	LegalIDCardNo       string `json:"legalIdcardNo"`
	LegalIDCardType     string `json:"legalIdcardType"`
	LegalBirthDate      string `json:"legalBirthDate"`
}

type VerificationResult struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason"`
}

// AccountOpenResult is the terminal artifact of a workflow. Code and Message carry
// the upstream rtncode/rtnmsg unmodified.
type AccountOpenResult struct {
	Success       bool      `json:"success"`
	Code          string    `json:"code,omitempty"`
	Message       string    `json:"message"`
	AccountNumber string    `json:"account_number,omitempty"`
	OpenedAt      time.Time `json:"opened_at"`
}
