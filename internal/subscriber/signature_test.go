package subscriber

import "testing"

func TestValidSignatureAcceptsMatchingHMAC(t *testing.T) {
	secret := []byte("s3cr3t")
	body := []byte(`<feed><entry><title>new video</title></entry></feed>`)
	header := Sign(secret, body)

	if !ValidSignature(secret, body, header) {
		t.Fatalf("expected signature %q to validate against its own body", header)
	}
}

func TestValidSignatureRejectsTamperedBody(t *testing.T) {
	secret := []byte("s3cr3t")
	header := Sign(secret, []byte("original"))

	if ValidSignature(secret, []byte("tampered"), header) {
		t.Fatal("expected signature computed over a different body to be rejected")
	}
}

func TestValidSignatureRejectsWrongSecret(t *testing.T) {
	body := []byte("payload")
	header := Sign([]byte("secret-a"), body)

	if ValidSignature([]byte("secret-b"), body, header) {
		t.Fatal("expected signature to be rejected under the wrong secret")
	}
}

func TestValidSignatureRejectsMalformedHeader(t *testing.T) {
	cases := []string{"", "sha256=deadbeef", "sha1=not-hex", "sha1="}
	for _, header := range cases {
		if ValidSignature([]byte("secret"), []byte("body"), header) {
			t.Fatalf("expected header %q to be rejected", header)
		}
	}
}
