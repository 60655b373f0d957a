package nvme

import (
	"testing"

	"github.com/HewlettPackard/structex"
)

func TestSubmissionEntryStructex(t *testing.T) {
	sz, err := structex.Size(SubmissionEntry{})
	if err != nil {
		t.Fatal(err)
	}
	if sz != SubmissionEntrySize {
		t.Fatalf("Submission entry size incorrect: Expected: %d Actual: %d", SubmissionEntrySize, sz)
	}
}

func TestCompletionEntryStructex(t *testing.T) {
	sz, err := structex.Size(CompletionEntry{})
	if err != nil {
		t.Fatal(err)
	}
	if sz != CompletionEntrySize {
		t.Fatalf("Completion entry size incorrect: Expected: %d Actual: %d", CompletionEntrySize, sz)
	}
}

func TestIdentifyPagesStructex(t *testing.T) {
	sz, err := structex.Size(IdentifyController{})
	if err != nil {
		t.Fatal(err)
	}
	if sz != IdentifyDataSize {
		t.Fatalf("Identify controller page size incorrect: Expected: %d Actual: %d", IdentifyDataSize, sz)
	}

	sz, err = structex.Size(IdentifyNamespace{})
	if err != nil {
		t.Fatal(err)
	}
	if sz != IdentifyDataSize {
		t.Fatalf("Identify namespace page size incorrect: Expected: %d Actual: %d", IdentifyDataSize, sz)
	}
}

func TestSubmissionEntryLayout(t *testing.T) {
	entry := SubmissionEntry{
		Opcode:      uint8(ReadOpCode),
		CommandId:   0x1234,
		NamespaceId: 0x01020304,
		PRP1:        0x1122334455667788,
		CDW10:       0xAABBCCDD,
	}

	buf, err := structex.EncodeByteBuffer(entry)
	if err != nil {
		t.Fatal(err)
	}

	if buf[0] != 0x02 {
		t.Fatalf("opcode not at byte 0: %#x", buf[0])
	}
	if buf[2] != 0x34 || buf[3] != 0x12 {
		t.Fatal("command id not little-endian at bytes 2-3")
	}
	if buf[4] != 0x04 || buf[7] != 0x01 {
		t.Fatal("namespace id not at bytes 4-7")
	}
	if buf[24] != 0x88 || buf[31] != 0x11 {
		t.Fatal("PRP1 not at bytes 24-31")
	}
	if buf[40] != 0xDD || buf[43] != 0xAA {
		t.Fatal("CDW10 not at bytes 40-43")
	}
}

func TestCompletionStatus(t *testing.T) {
	entry := CompletionEntry{Status: encodeCompletionStatus(1, 0x80, 0x2)}

	if entry.Phase() != 1 {
		t.Fatal("phase bit lost")
	}
	if entry.StatusCode() != 0x80 {
		t.Fatalf("status code incorrect: %#x", entry.StatusCode())
	}
	if entry.StatusCodeType() != 0x2 {
		t.Fatalf("status code type incorrect: %#x", entry.StatusCodeType())
	}

	err := entry.Err()
	if err == nil {
		t.Fatal("non-zero status must produce an error")
	}

	status, ok := err.(*CommandStatusError)
	if !ok {
		t.Fatalf("unexpected error type: %T", err)
	}
	if status.Code != 0x80 || status.Type != 0x2 {
		t.Fatalf("status fields lost: %+v", status)
	}

	entry.Status = encodeCompletionStatus(0, 0, 0)
	if entry.Err() != nil {
		t.Fatal("successful completion must not produce an error")
	}
}
