package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyringRoundTrip(t *testing.T) {
	t.Setenv(EnvToken, "")
	k := Keyring{Dir: filepath.Join(t.TempDir(), ".tada")}

	if ti, err := k.Token(); err != nil || ti != nil {
		t.Fatalf("empty keyring: %v, %v", ti, err)
	}
	if err := k.SetToken("  Bearer abc123 "); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(k.path())
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("perm = %v", fi.Mode().Perm())
	}
	ti, err := k.Token()
	if err != nil {
		t.Fatal(err)
	}
	if ti.Token != "abc123" || ti.Source != "file" {
		t.Errorf("token = %+v", ti)
	}
	if err := k.DeleteToken(); err != nil {
		t.Fatal(err)
	}
	if err := k.DeleteToken(); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv(EnvToken, "bearer fromenv")
	ti, err := Keyring{Dir: t.TempDir()}.Token()
	if err != nil {
		t.Fatal(err)
	}
	if ti.Token != "fromenv" || ti.Source != "env" {
		t.Errorf("token = %+v", ti)
	}
}

func TestSetEmptyToken(t *testing.T) {
	if err := (Keyring{Dir: t.TempDir()}).SetToken("   "); err == nil {
		t.Error("empty token accepted")
	}
}

func TestBearer(t *testing.T) {
	if tok, ok := Bearer("Bearer xyz"); !ok || tok != "xyz" {
		t.Errorf("Bearer = %q, %v", tok, ok)
	}
	if _, ok := Bearer("Basic xyz"); ok {
		t.Error("basic accepted as bearer")
	}
}
