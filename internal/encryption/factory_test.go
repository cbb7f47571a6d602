package encryption

import (
	"bytes"
	"strings"
	"testing"

	"cdmkn-go/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		wantType string
		wantErr  bool
	}{
		{name: "default is age", typ: "", wantType: "age"},
		{name: "age", typ: "age", wantType: "age"},
		{name: "test", typ: "test", wantType: "stub"},
		{name: "none", typ: "none", wantType: "nil"},
		{name: "unknown", typ: "rot13", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: tt.typ})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			var gotType string
			switch got.(type) {
			case *AgeEncryptor:
				gotType = "age"
			case *StubEncryptor:
				gotType = "stub"
			case nil:
				gotType = "nil"
			}
			if gotType != tt.wantType {
				t.Errorf("NewEncryptorFromConfig() type = %s, want %s", gotType, tt.wantType)
			}
		})
	}
}

func TestStubEncryptor(t *testing.T) {
	t.Parallel()
	e := NewStubEncryptor()
	if err := e.Setup("ignored"); err != nil || !e.setup {
		t.Fatalf("Setup() error = %v, setup = %v", err, e.setup)
	}

	var sealed bytes.Buffer
	if err := e.Encrypt(strings.NewReader("payload"), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if sealed.String() == "payload" {
		t.Error("sealed output equals plaintext")
	}

	dctx, _ := e.Unlock("ignored")
	var opened bytes.Buffer
	if err := dctx.Decrypt(bytes.NewReader(sealed.Bytes()), &opened); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if opened.String() != "payload" {
		t.Errorf("Decrypt() = %q, want payload", opened.String())
	}

	if err := dctx.Decrypt(strings.NewReader("plain text"), &opened); err == nil {
		t.Error("Decrypt() of unsealed data should fail")
	}
	if err := dctx.Decrypt(strings.NewReader("CD"), &opened); err == nil {
		t.Error("Decrypt() of truncated data should fail")
	}
}
