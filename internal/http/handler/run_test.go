package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"testsmith.app/testsmith/internal/http/handler"
	"testsmith.app/testsmith/internal/model"
	"testsmith.app/testsmith/internal/service"
	"testsmith.app/testsmith/internal/store"
)

type mockRunService struct {
	createFn func(ctx context.Context, params service.CreateRunParams) (*model.GenerationRun, error)
	getFn    func(ctx context.Context, id int64) (*model.GenerationRun, error)
	listFn   func(ctx context.Context, limit int32) ([]model.GenerationRun, error)
}

func (m *mockRunService) Create(ctx context.Context, params service.CreateRunParams) (*model.GenerationRun, error) {
	if m.createFn != nil {
		return m.createFn(ctx, params)
	}
	return nil, nil
}

func (m *mockRunService) Get(ctx context.Context, id int64) (*model.GenerationRun, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockRunService) ListRecent(ctx context.Context, limit int32) ([]model.GenerationRun, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return nil, nil
}

var _ = Describe("RunHandler", func() {
	var (
		router      *gin.Engine
		svc         *mockRunService
		adminAPIKey string
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockRunService{}
		adminAPIKey = "test-admin-key"
		h := handler.NewRunHandler(svc, adminAPIKey)

		runs := router.Group("/api/v1/runs")
		runs.POST("", h.RequireAdminAPIKey(), h.Create)
		runs.GET("", h.List)
		runs.GET("/:id", h.GetByID)
	})

	Describe("Create", func() {
		postRun := func(body map[string]any, apiKey string) *httptest.ResponseRecorder {
			payload, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			if apiKey != "" {
				req.Header.Set("X-Admin-API-Key", apiKey)
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		It("accepts a valid run and returns 202", func() {
			svc.createFn = func(ctx context.Context, params service.CreateRunParams) (*model.GenerationRun, error) {
				Expect(params.SourcePath).To(Equal("internal/api/server.go"))
				Expect(params.Technologies).To(Equal([]string{"testify"}))
				return &model.GenerationRun{
					ID:         7,
					Slug:       "server-go",
					SourcePath: params.SourcePath,
					Status:     model.RunStatusQueued,
				}, nil
			}

			rec := postRun(map[string]any{
				"source_path":  "internal/api/server.go",
				"technologies": []string{"testify"},
			}, adminAPIKey)

			Expect(rec.Code).To(Equal(http.StatusAccepted))

			var resp map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["id"]).To(Equal("7"))
			Expect(resp["status"]).To(Equal("queued"))
		})

		It("rejects requests without the admin API key", func() {
			rec := postRun(map[string]any{"source_path": "x.go"}, "")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects requests with a wrong API key", func() {
			rec := postRun(map[string]any{"source_path": "x.go"}, "wrong")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("returns 400 when the source is ambiguous", func() {
			svc.createFn = func(ctx context.Context, params service.CreateRunParams) (*model.GenerationRun, error) {
				return nil, service.ErrInvalidSource
			}

			rec := postRun(map[string]any{}, adminAPIKey)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unknown provider at binding", func() {
			rec := postRun(map[string]any{
				"source_path": "x.go",
				"provider":    "aliens",
			}, adminAPIKey)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GetByID", func() {
		It("returns the run", func() {
			svc.getFn = func(ctx context.Context, id int64) (*model.GenerationRun, error) {
				Expect(id).To(Equal(int64(7)))
				output := "func TestX(t *testing.T) {}\n"
				return &model.GenerationRun{
					ID:     7,
					Slug:   "server-go",
					Status: model.RunStatusSucceeded,
					Output: &output,
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/7", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("succeeded"))
			Expect(resp["output"]).To(Equal("func TestX(t *testing.T) {}\n"))
		})

		It("returns 404 for a missing run", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/999", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a non-numeric id", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/abc", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("List", func() {
		It("lists recent runs", func() {
			svc.listFn = func(ctx context.Context, limit int32) ([]model.GenerationRun, error) {
				return []model.GenerationRun{
					{ID: 1, Slug: "a-go", Status: model.RunStatusSucceeded},
					{ID: 2, Slug: "b-go", Status: model.RunStatusQueued},
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Runs []map[string]any `json:"runs"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Runs).To(HaveLen(2))
		})

		It("rejects a non-numeric limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=abc", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
