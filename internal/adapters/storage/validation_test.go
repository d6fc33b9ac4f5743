package storage

import (
	"strings"
	"testing"

	"claims_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestValidateUpload(t *testing.T) {
	s := &MinIOService{maxFileSize: 10 << 20}

	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     bool
	}{
		{"pdf", "application/pdf", 1024, false},
		{"jpeg with params", "image/JPEG; charset=binary", 2048, false},
		{"video refused", "video/mp4", 1024, true},
		{"empty file", "application/pdf", 0, true},
		{"too large", "application/pdf", 11 << 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateContentType(tt.contentType)
			if err == nil {
				err = s.ValidateFileSize(tt.size)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected result %v", err)
			}
			if err != nil && !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation kind, got %v", err)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	tests := map[string]string{
		"constat.pdf":          "claims/CLM-2025-00001/constat_1b4e28ba.pdf",
		"../../etc/passwd":     "claims/CLM-2025-00001/passwd_1b4e28ba",
		`C:\scans\facture.png`: "claims/CLM-2025-00001/facture_1b4e28ba.png",
		".pdf":                 "claims/CLM-2025-00001/document_1b4e28ba.pdf",
	}
	for in, want := range tests {
		got := ObjectKey("claims/CLM-2025-00001", in, id)
		if got != want {
			t.Fatalf("ObjectKey(%q) = %q, want %q", in, got, want)
		}
		if strings.Contains(got, "..") {
			t.Fatalf("key escapes its folder: %s", got)
		}
	}
}
