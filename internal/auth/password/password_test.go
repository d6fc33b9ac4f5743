package password

import "testing"

func TestHashAndCompare(t *testing.T) {
	hash, err := Hash("s3cret-Passw0rd")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := Compare(hash, "s3cret-Passw0rd"); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := Compare(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch")
	}
}
