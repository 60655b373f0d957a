package nvme

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadWriteRoundTrip(t *testing.T) {
	ctrl, mock := newReadyController(t)

	pattern := make([]byte, 4096)
	for i := range pattern {
		pattern[i] = byte(i)
	}

	if err := ctrl.Write(1, 100, 8, pattern); err != nil {
		t.Fatal(err)
	}

	// The blocks landed at the right media offset.
	media := mock.NamespaceBytes(1)
	if !bytes.Equal(media[100*512:100*512+4096], pattern) {
		t.Fatal("write landed at the wrong media offset")
	}

	readback := make([]byte, 4096)
	if err := ctrl.Read(1, 100, 8, readback); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(readback, pattern) {
		t.Fatal("read returned different data than written")
	}
}

func TestTransferStagesUnalignedBuffers(t *testing.T) {
	ctrl, _ := newReadyController(t)

	// A plain heap slice is outside the device arena and forces the
	// staging path.
	data := make([]byte, 512)
	for i := range data {
		data[i] = 0xA5
	}

	if err := ctrl.Write(1, 0, 1, data); err != nil {
		t.Fatal(err)
	}

	readback := make([]byte, 512)
	if err := ctrl.Read(1, 0, 1, readback); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(readback, data) {
		t.Fatal("staged transfer corrupted data")
	}
}

func TestTransferAlignedArenaBuffer(t *testing.T) {
	ctrl, _ := newReadyController(t)

	buf, err := ctrl.arena.Alloc(4096)
	if err != nil {
		t.Fatal(err)
	}
	defer ctrl.arena.Free(buf)

	for i := range buf.Data {
		buf.Data[i] = byte(i % 251)
	}
	written := append([]byte{}, buf.Data...)

	if err := ctrl.Write(1, 4, 8, buf.Data); err != nil {
		t.Fatal(err)
	}

	for i := range buf.Data {
		buf.Data[i] = 0
	}
	if err := ctrl.Read(1, 4, 8, buf.Data); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Data, written) {
		t.Fatal("direct transfer corrupted data")
	}
}

func TestTransferSpansMultiplePages(t *testing.T) {
	ctrl, mock := newReadyController(t)

	// 24 blocks is 12 KiB, a page past what the entry's own region
	// pointers can describe; the transfer must carry a list page.
	pattern := make([]byte, 24*512)
	for i := range pattern {
		pattern[i] = byte(i * 7)
	}

	if err := ctrl.Write(1, 16, 24, pattern); err != nil {
		t.Fatal(err)
	}

	media := mock.NamespaceBytes(1)
	if !bytes.Equal(media[16*512:16*512+len(pattern)], pattern) {
		t.Fatal("multi-page write corrupted the media")
	}

	readback := make([]byte, len(pattern))
	if err := ctrl.Read(1, 16, 24, readback); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(readback, pattern) {
		t.Fatal("multi-page read returned different data than written")
	}
}

func TestRejectedTransferTouchesNoRegister(t *testing.T) {
	ctrl, mock := newReadyController(t)
	buf := make([]byte, 512)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"zero count", func() error { return ctrl.Read(1, 0, 0, buf) }, ErrOutOfRangeAccess},
		{"start beyond end", func() error { return ctrl.Read(1, 2048, 1, buf) }, ErrOutOfRangeAccess},
		{"run beyond end", func() error { return ctrl.Read(1, 2040, 16, nil) }, ErrOutOfRangeAccess},
		{"unknown namespace", func() error { return ctrl.Read(9, 0, 1, buf) }, ErrInvalidNamespace},
		{"oversized", func() error { return ctrl.Read(1, 0, 257, nil) }, ErrTransferTooLarge},
	}

	for _, tt := range tests {
		doorbells := len(mock.DoorbellWrites())

		if err := tt.run(); !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
		if len(mock.DoorbellWrites()) != doorbells {
			t.Fatalf("%s: rejected transfer rang a doorbell", tt.name)
		}
	}
}

func TestTransferRequiresReadyController(t *testing.T) {
	ctrl, _ := newTestController(t, nil)

	if err := ctrl.Read(1, 0, 1, make([]byte, 512)); !errors.Is(err, ErrControllerNotReady) {
		t.Fatalf("expected ErrControllerNotReady, got %v", err)
	}
}

func TestTransferSurfacesCommandStatus(t *testing.T) {
	ctrl, mock := newReadyController(t)
	mock.FailNextCommand(mockStatusTypeGeneric, mockStatusLbaOutOfRange)

	err := ctrl.Read(1, 0, 1, make([]byte, 512))

	var status *CommandStatusError
	if !errors.As(err, &status) {
		t.Fatalf("expected CommandStatusError, got %v", err)
	}
	if status.Code != mockStatusLbaOutOfRange {
		t.Fatalf("status code lost: %#x", status.Code)
	}
}

func TestTransferShortBuffer(t *testing.T) {
	ctrl, _ := newReadyController(t)

	if err := ctrl.Read(1, 0, 4, make([]byte, 512)); err == nil {
		t.Fatal("short buffer accepted")
	}
}
