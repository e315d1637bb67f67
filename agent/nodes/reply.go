package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
)

const (
	ReplyUploadFirst  = "请先上传您的营业执照图片进行解析。"
	ReplyUploadPrompt = "请上传您的营业执照图片以便系统解析企业信息。"
	ReplyCloseAccount = "销户服务当前未开放，如需办理销户请前往柜台或联系客服热线：400-123-4567。"
	ReplyWelcome      = "您好！我是银行企业开户助手，可以为您解析营业执照并办理对公开户。请上传营业执照图片，或输入\"开户\"继续办理。"
	ReplyReupload     = "请重新上传营业执照图片后再办理开户。"

	ReplyGeneric           = "系统处理请求时发生错误，请稍后重试或联系客服。"
	ReplyInvalidRequest    = "请输入您的需求或上传营业执照图片。"
	ReplyClassifierDown    = "暂时无法识别您的需求，请稍后重试。"
	ReplyRemoteUnavailable = "银行系统暂时无法访问，请稍后重试。"
	ReplyExtractorDown     = "营业执照识别服务暂时不可用，请稍后重试。"
	ReplyRequestCanceled   = "请求已取消。"

	replyDisplayTimeLayout  = "2006-01-02 15:04:05"
	replyExtractionFailedAt = "营业执照解析失败："
)

func licenseParsedReply(r contractx.LicenseRecord) string {
	return fmt.Sprintf("营业执照解析成功！\n公司名称：%s\n统一社会信用代码：%s\n法定代表人：%s\n\n如果信息无误，请输入\"开户\"继续办理开户业务。",
		r.AcctName, r.USCC, r.LegalName)
}

func accountOpenedReply(acctName string, res contractx.AccountOpenResult) string {
	return fmt.Sprintf("开户成功！\n账户名称：%s\n账户：%s\n开户时间：%s",
		acctName, res.AccountNumber, formatOpenedAt(res.OpenedAt))
}

func verificationFailedReply(reason string) string {
	return "验证营业执照信息失败：" + reason
}

func blacklistedReply(acctName string) string {
	return fmt.Sprintf("企业%s在黑名单中，无法开户", acctName)
}

func openRejectedReply(message string) string {
	return "开户失败：" + message
}

func extractionFailedReply(err error) string {
	switch {
	case errors.Is(err, contractx.ErrUnparsableExtraction):
		return replyExtractionFailedAt + "无法从图片中识别营业执照信息，请上传清晰的营业执照图片。"
	case errors.Is(err, contractx.ErrIncompleteRecord):
		return replyExtractionFailedAt + "营业执照关键信息缺失，请上传完整清晰的营业执照图片。"
	case errors.Is(err, contractx.ErrMalformedField):
		return replyExtractionFailedAt + "注册资本等关键信息格式无法识别，请上传清晰的营业执照图片。"
	default:
		return replyExtractionFailedAt + "请重新上传营业执照图片。"
	}
}

// failedSessionReply repeats the recorded failure of an absorbed session.
func failedSessionReply(st *statex.Session) string {
	reason := strings.TrimSpace(st.FailureReason)
	if reason == "" {
		return ReplyReupload
	}
	return reason + "\n" + ReplyReupload
}

// FailureError maps a recorded failure kind back to its sentinel.
func FailureError(kind string) error {
	switch kind {
	case statex.FailureExtraction:
		return contractx.ErrUnparsableExtraction
	case statex.FailureVerification:
		return contractx.ErrVerificationRejected
	case statex.FailureBlacklisted:
		return contractx.ErrBlacklisted
	case statex.FailureOpenRejected:
		return contractx.ErrOpenRejected
	default:
		return contractx.ErrValidation
	}
}

// ErrorReply is the user-facing message for a run that ended with err.
func ErrorReply(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, contractx.ErrValidation):
		return ReplyInvalidRequest
	case errors.Is(err, contractx.ErrClassificationUnavailable):
		return ReplyClassifierDown
	case errors.Is(err, contractx.ErrRemoteUnavailable):
		return ReplyRemoteUnavailable
	case errors.Is(err, contractx.ErrModelInvoke):
		return ReplyExtractorDown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReplyRequestCanceled
	default:
		return ReplyGeneric
	}
}

func formatOpenedAt(t time.Time) string {
	return t.Local().Format(replyDisplayTimeLayout)
}
