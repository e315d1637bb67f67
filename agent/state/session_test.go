package state

import (
	"errors"
	"testing"
	"time"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
)

var testNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func uploaded(t *testing.T) *Session {
	t.Helper()
	st := NewSession("s-1", testNow)
	st.Upload(contractx.LicenseRecord{AcctName: "示例科技有限公司", USCC: "91350100M000100Y43"}, testNow)
	return st
}

func TestSessionAdvanceIsOneWay(t *testing.T) {
	t.Parallel()

	st := uploaded(t)
	if err := st.Advance(StageBlacklistCleared, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Advance() skipping a stage error = %v, want ErrInvalidTransition", err)
	}
	if err := st.Advance(StageVerified, testNow); err != nil {
		t.Fatalf("Advance(verified) error = %v", err)
	}
	if err := st.Advance(StageLicenseUploaded, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Advance() backwards error = %v, want ErrInvalidTransition", err)
	}
	if st.Stage != StageVerified {
		t.Fatalf("Stage = %s, want %s", st.Stage, StageVerified)
	}
}

func TestSessionAdvanceRequiresRecord(t *testing.T) {
	t.Parallel()

	st := NewSession("s-1", testNow)
	if err := st.Advance(StageLicenseUploaded, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Advance() without record error = %v, want ErrInvalidTransition", err)
	}
}

func TestSessionFailedIsAbsorbing(t *testing.T) {
	t.Parallel()

	st := uploaded(t)
	st.Fail(FailureBlacklisted, "企业在黑名单中", testNow)
	if !st.IsFailed() {
		t.Fatal("IsFailed() = false, want true")
	}
	if err := st.Advance(StageVerified, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Advance() after failure error = %v, want ErrInvalidTransition", err)
	}

	st.Upload(contractx.LicenseRecord{AcctName: "新公司"}, testNow.Add(time.Minute))
	if st.Stage != StageLicenseUploaded || st.FailureKind != "" || st.FailureReason != "" {
		t.Fatalf("Upload() after failure = %+v, want fresh license_uploaded", st)
	}
	if st.Record.AcctName != "新公司" {
		t.Fatalf("Record.AcctName = %q, want overwritten record", st.Record.AcctName)
	}
}

func TestSessionCompleteClearsRecord(t *testing.T) {
	t.Parallel()

	st := uploaded(t)
	for _, stage := range []Stage{StageVerified, StageBlacklistCleared} {
		if err := st.Advance(stage, testNow); err != nil {
			t.Fatalf("Advance(%s) error = %v", stage, err)
		}
	}

	result := contractx.AccountOpenResult{Success: true, AccountNumber: "1001000000000042", OpenedAt: testNow}
	if err := st.Complete(result, testNow); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if st.HasRecord() {
		t.Fatal("HasRecord() = true after Complete")
	}
	if st.Stage != StageNone {
		t.Fatalf("Stage = %s, want %s", st.Stage, StageNone)
	}
	if st.LastResult == nil || st.LastResult.AccountNumber != "1001000000000042" {
		t.Fatalf("LastResult = %+v", st.LastResult)
	}
}

func TestSessionCompleteRequiresScreening(t *testing.T) {
	t.Parallel()

	st := uploaded(t)
	if err := st.Complete(contractx.AccountOpenResult{Success: true}, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Complete() before screening error = %v, want ErrInvalidTransition", err)
	}
	if !st.HasRecord() {
		t.Fatal("record dropped by rejected Complete")
	}
}

func TestSessionCloneIsIndependent(t *testing.T) {
	t.Parallel()

	st := uploaded(t)
	cp := st.Clone()
	cp.Record.AcctName = "changed"
	if st.Record.AcctName == "changed" {
		t.Fatal("Clone() shares the record pointer")
	}
}
