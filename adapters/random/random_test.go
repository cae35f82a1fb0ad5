package random_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/artpar/ritan/adapters/random"
)

func TestReal_Bytes(t *testing.T) {
	a, err := random.Real{}.Bytes(32)
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("len = %d, want 32", len(a))
	}
	b, _ := random.Real{}.Bytes(32)
	if bytes.Equal(a, b) {
		t.Error("two reads returned the same 32 bytes")
	}
}

func TestFake_Preset(t *testing.T) {
	f := random.NewFake([]byte{1, 2, 3}, []byte{9})

	got, _ := f.Bytes(4)
	if !bytes.Equal(got, []byte{1, 2, 3, 0}) {
		t.Errorf("first = %v, want padded preset", got)
	}
	got, _ = f.Bytes(1)
	if !bytes.Equal(got, []byte{9}) {
		t.Errorf("second = %v, want [9]", got)
	}

	x, _ := f.Bytes(8)
	y, _ := f.Bytes(8)
	if bytes.Equal(x, y) {
		t.Error("generated values should differ between calls")
	}
}

func TestFailing(t *testing.T) {
	if _, err := (random.Failing{}).Bytes(8); !errors.Is(err, random.ErrExhausted) {
		t.Errorf("Bytes() error = %v, want ErrExhausted", err)
	}
}
