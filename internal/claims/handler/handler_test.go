package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"claims_portal_backend/internal/adapters/storage"
	"claims_portal_backend/internal/auth/permissions"
	"claims_portal_backend/internal/claims/expertise"
	"claims_portal_backend/internal/claims/handler"
	"claims_portal_backend/internal/claims/repository"
	"claims_portal_backend/internal/claims/repository/repositorytest"
	"claims_portal_backend/internal/claims/transport"
	"claims_portal_backend/internal/claims/workflow"
	"claims_portal_backend/internal/claims/workflow/workflowtest"
	"claims_portal_backend/platform/httpkit"
	"claims_portal_backend/platform/logger"
	"claims_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

var now = time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC)

type fakeStorage struct{}

func (fakeStorage) GenerateUploadURL(_ context.Context, bucket, folder, fileName, _ string, _ int64) (*storage.PresignedURL, error) {
	key := folder + "/" + fileName
	return &storage.PresignedURL{URL: "https://minio.test/" + bucket + "/" + key, FileKey: key, ExpiresAt: now.Add(storage.PresignedURLTTL)}, nil
}

func (fakeStorage) GenerateDownloadURL(_ context.Context, bucket, fileKey string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://minio.test/" + bucket + "/" + fileKey, FileKey: fileKey}, nil
}

func (fakeStorage) EnsureBucketExists(context.Context, string) error { return nil }

type server struct {
	engine *gin.Engine
	actors map[string]workflowtest.Actor
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.New("test")
	registry := permissions.MustLoad(permissions.ModeFull)
	store := repositorytest.New()
	dir := workflowtest.NewDirectory()
	clock := workflowtest.NewClock(now)

	s := &server{actors: map[string]workflowtest.Actor{}}
	for _, entry := range [][2]string{
		{"u1", permissions.RoleAssure},
		{"u2", permissions.RoleAssure},
		{"gestion", permissions.RoleGestionnaire},
		{"expert", permissions.RoleExpert},
	} {
		u := store.AddUser(entry[0], entry[1])
		dir.Add(u)
		s.actors[entry[0]] = workflowtest.NewActor(u, registry)
	}

	val := validator.New()
	if err := transport.RegisterValidations(val); err != nil {
		t.Fatalf("register validations: %v", err)
	}
	repo := repository.New(store, log).WithClock(clock.Now)
	engine := workflow.New(repo, dir, nil, log).WithClock(clock.Now)
	h := handler.New(handler.Deps{
		Claims:    repo,
		Engine:    engine,
		Expertise: expertise.NewManager(engine),
		Storage:   fakeStorage{},
		Bucket:    "claim-documents",
		Validator: val,
		Now:       clock.Now,
	})

	s.engine = gin.New()
	group := s.engine.Group("/api/v1/claims", func(c *gin.Context) {
		if a, ok := s.actors[c.GetHeader("X-Test-User")]; ok {
			c.Set(httpkit.ContextPrincipalKey, a)
		}
		c.Next()
	})
	h.RegisterRoutes(group)
	return s
}

func (s *server) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, "/api/v1/claims"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func (s *server) createClaim(t *testing.T) transport.ClaimResponse {
	t.Helper()
	rec := s.do(t, "u1", http.MethodPost, "", map[string]any{
		"policyNumber": "POL-AUTO-12345",
		"type":         "auto",
		"incidentDate": now.Add(-24 * time.Hour).Format(time.RFC3339),
		"location":     "Lyon",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	return decode[transport.ClaimResponse](t, rec)
}

func TestCreateAndRead(t *testing.T) {
	s := newServer(t)

	if rec := s.do(t, "", http.MethodGet, "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: got %d", rec.Code)
	}

	created := s.createClaim(t)
	if created.ClaimNumber != "CLM-2025-00001" || created.Status != "ouvert" || len(created.Events) != 1 {
		t.Fatalf("unexpected claim %+v", created)
	}
	if len(created.ProcessSteps) != 5 || created.ProcessSteps[0].Status != "in_progress" {
		t.Fatalf("unexpected steps %+v", created.ProcessSteps)
	}

	tests := []struct {
		user  string
		path  string
		want  int
		total int
	}{
		{"u1", "", http.StatusOK, 1},
		{"u2", "", http.StatusOK, 0},
		{"gestion", "", http.StatusOK, 1},
		{"gestion", "?status=clos", http.StatusOK, 0},
		{"expert", "", http.StatusOK, 0},
	}
	for _, tt := range tests {
		rec := s.do(t, tt.user, http.MethodGet, tt.path, nil)
		if rec.Code != tt.want {
			t.Fatalf("%s list: got %d", tt.user, rec.Code)
		}
		if got := decode[transport.ClaimListResponse](t, rec); got.Total != tt.total {
			t.Fatalf("%s list%s: expected %d claims, got %d", tt.user, tt.path, tt.total, got.Total)
		}
	}

	path := "/" + created.ClaimNumber
	if rec := s.do(t, "u2", http.MethodGet, path, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("other assure read: got %d", rec.Code)
	}
	if rec := s.do(t, "gestion", http.MethodGet, "/CLM-2025-99999", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown claim: got %d", rec.Code)
	}
	if rec := s.do(t, "u1", http.MethodGet, path, nil); rec.Code != http.StatusOK {
		t.Fatalf("declarant read: got %d", rec.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, "u1", http.MethodPost, "", map[string]any{
		"policyNumber": "POL-1",
		"type":         "bateau",
		"incidentDate": now.Format(time.RFC3339),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode[httpkit.ErrorResponse](t, rec)
	if !strings.Contains(rec.Body.String(), `"field":"type"`) || body.Error != "validation failed" {
		t.Fatalf("expected a type field error, got %s", rec.Body.String())
	}

	rec = s.do(t, "expert", http.MethodPost, "", map[string]any{
		"policyNumber": "POL-1",
		"type":         "vie",
		"incidentDate": now.Format(time.RFC3339),
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expert create: expected 403, got %d", rec.Code)
	}
}

func TestStepCommands(t *testing.T) {
	s := newServer(t)
	c := s.createClaim(t)
	base := "/" + c.ClaimNumber + "/steps/"

	cases := []struct {
		name string
		user string
		path string
		want int
	}{
		{"unknown step", "gestion", base + "archivage/start", http.StatusBadRequest},
		{"not the current step", "gestion", base + "instruction/start", http.StatusConflict},
		{"assure may not drive steps", "u1", base + "declaration/complete", http.StatusForbidden},
		{"manager completes declaration", "gestion", base + "declaration/complete", http.StatusOK},
		{"second completion is illegal", "gestion", base + "declaration/complete", http.StatusConflict},
		{"manager starts instruction", "gestion", base + "instruction/start", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.user, http.MethodPost, tc.path, nil)
			if rec.Code != tc.want {
				t.Fatalf("got %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	rec := s.do(t, "gestion", http.MethodGet, "/"+c.ClaimNumber+"/events?limit=2", nil)
	events := decode[transport.EventListResponse](t, rec)
	if len(events.Items) != 2 || events.Total != 3 || !strings.Contains(events.Items[0].Description, "Instruction") {
		t.Fatalf("unexpected events %+v", events)
	}
	if rec := s.do(t, "gestion", http.MethodGet, "/"+c.ClaimNumber+"/events?limit=0", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=0: got %d", rec.Code)
	}
}

func TestStatusAndConformity(t *testing.T) {
	s := newServer(t)
	c := s.createClaim(t)
	path := "/" + c.ClaimNumber

	if rec := s.do(t, "gestion", http.MethodPatch, path+"/status", map[string]string{"status": "archive"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: got %d", rec.Code)
	}
	if rec := s.do(t, "gestion", http.MethodPatch, path+"/status", map[string]string{"status": "en_analyse"}); rec.Code != http.StatusConflict {
		t.Fatalf("en_analyse before declaration: got %d", rec.Code)
	}

	rec := s.do(t, "u1", http.MethodGet, path+"/conformity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("conformity: got %d", rec.Code)
	}
	conf := decode[transport.ConformityResponse](t, rec)
	if conf.Late || len(conf.Checks) != 3 || conf.Checks[0].Name != "declaration" || conf.Checks[0].Status != "ok" {
		t.Fatalf("unexpected conformity %+v", conf)
	}
}

func TestDocumentUpload(t *testing.T) {
	s := newServer(t)
	c := s.createClaim(t)
	path := "/" + c.ClaimNumber + "/documents"
	upload := map[string]any{"fileName": "constat.pdf", "contentType": "application/pdf", "sizeBytes": 2048}

	if rec := s.do(t, "u2", http.MethodPost, path+"/upload-url", upload); rec.Code != http.StatusForbidden {
		t.Fatalf("other assure upload url: got %d", rec.Code)
	}
	rec := s.do(t, "u1", http.MethodPost, path+"/upload-url", upload)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload url: %d %s", rec.Code, rec.Body.String())
	}
	presigned := decode[transport.UploadURLResponse](t, rec)
	if !strings.HasPrefix(presigned.FileKey, "claims/"+c.ClaimNumber+"/") {
		t.Fatalf("unexpected key %s", presigned.FileKey)
	}

	foreign := map[string]string{"fileKey": "claims/CLM-2025-00042/x.pdf", "fileName": "x.pdf", "contentType": "application/pdf"}
	if rec := s.do(t, "u1", http.MethodPost, path, foreign); rec.Code != http.StatusBadRequest {
		t.Fatalf("foreign key: got %d", rec.Code)
	}

	attach := map[string]string{"fileKey": presigned.FileKey, "fileName": "constat.pdf", "contentType": "application/pdf"}
	rec = s.do(t, "u1", http.MethodPost, path, attach)
	if rec.Code != http.StatusCreated {
		t.Fatalf("attach: %d %s", rec.Code, rec.Body.String())
	}
	got := decode[transport.ClaimResponse](t, rec)
	if len(got.Documents) != 1 || got.Events[0].Type != "document" {
		t.Fatalf("document not recorded: %+v", got.Documents)
	}
}
