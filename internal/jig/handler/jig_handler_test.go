package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/porast/jigman/internal/config"
	"github.com/porast/jigman/internal/jig/entity"
	"github.com/porast/jigman/internal/jig/service"
	"github.com/porast/jigman/internal/jig/store"
	"github.com/porast/jigman/internal/jig/testutil"
	"github.com/porast/jigman/internal/middleware"
)

func setupEnv(t *testing.T) (*gin.Engine, *service.Services) {
	t.Helper()

	mem := store.NewMemoryStore()
	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:             testutil.JWTSecret,
			AccessTokenExpire:  time.Hour,
			RefreshTokenExpire: 24 * time.Hour,
			Issuer:             "jigman",
		},
	}
	svc := service.NewServices(mem, mem, cfg, nil, zap.NewNop())
	h := NewHandlers(svc, cfg)

	r := testutil.SetupRouter()
	r.POST("/api/v1/auth/login", h.Auth.Login)
	r.POST("/api/v1/auth/refresh", h.Auth.Refresh)

	api := testutil.AuthGroup(r, "/api/v1")
	api.GET("/auth/me", h.Auth.Me)
	api.GET("/customers", h.Jig.Customers)

	jigs := api.Group("/jigs")
	jigs.GET("", h.Jig.List)
	jigs.POST("", h.Jig.Create)
	jigs.GET("/:id", h.Jig.Get)
	jigs.PUT("/:id/status", h.Jig.UpdateStatus)
	jigs.POST("/:id/maintenance", h.Jig.AddMaintenance)
	jigs.DELETE("/:id", middleware.RequireRole("Administrator"), h.Jig.Delete)
	jigs.POST("/import", middleware.RequireRole("Administrator"), h.Jig.Import)

	export := api.Group("/export")
	export.GET("/json", h.Export.JSON)
	export.GET("/excel", h.Export.Excel)
	export.GET("/pdf", h.Export.PDF)

	return r, svc
}

// createJig registers a jig through the service and refreshes the cache,
// the way the change feed would in a running server.
func createJig(t *testing.T, svc *service.Services, customer, serial string) *entity.Jig {
	t.Helper()
	jig, err := svc.Inventory.AddJig(context.Background(), service.CreateJigInput{
		Prefix: "J", Customer: customer, Serial: serial,
		ProductModelType: "Test Fixture", ReceivedFrom: customer,
		StorageLocation: "Rack A1", ResponsiblePerson: "Novak",
	})
	if err != nil {
		t.Fatalf("AddJig: %v", err)
	}
	refresh(t, svc)
	return jig
}

func refresh(t *testing.T, svc *service.Services) {
	t.Helper()
	if err := svc.Inventory.RefreshNow(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func TestJigEndpointsRequireAuth(t *testing.T) {
	r, _ := setupEnv(t)

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/jigs", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}
}

func TestCreateJig(t *testing.T) {
	r, _ := setupEnv(t)

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/jigs", map[string]interface{}{
		"prefix": "J", "customer": "BMW", "serial": "007",
		"productModelType": "X1 Fixture", "receivedFrom": "BMW",
		"storageLocation": "Rack A1", "responsiblePerson": "Novak",
	}, testutil.UserToken())

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["id"] != "J_BMW_007" {
		t.Errorf("Expected id J_BMW_007, got %v", data["id"])
	}
	if data["status"] != "In Stock" {
		t.Errorf("Expected status In Stock, got %v", data["status"])
	}
}

func TestCreateJigValidation(t *testing.T) {
	r, _ := setupEnv(t)

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/jigs", map[string]interface{}{
		"prefix": "J", "customer": "BMW", "serial": "7",
		"productModelType": "X1 Fixture", "receivedFrom": "BMW",
		"storageLocation": "Rack A1", "responsiblePerson": "Novak",
	}, testutil.UserToken())

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestCreateDuplicateJig(t *testing.T) {
	r, svc := setupEnv(t)
	createJig(t, svc, "BMW", "007")

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/jigs", map[string]interface{}{
		"prefix": "j", "customer": "bmw", "serial": "007",
		"productModelType": "X1 Fixture", "receivedFrom": "BMW",
		"storageLocation": "Rack A1", "responsiblePerson": "Novak",
	}, testutil.UserToken())

	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["message"] != "This JIG number already exists" {
		t.Errorf("Unexpected message: %v", resp["message"])
	}
}

func TestListJigsWithFilters(t *testing.T) {
	r, svc := setupEnv(t)
	createJig(t, svc, "BMW", "001")
	createJig(t, svc, "AUD", "002")

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/jigs?search=bmw", nil, testutil.UserToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	// The customer list covers the full collection, not the filtered view.
	customers := data["customers"].([]interface{})
	if len(customers) != 2 {
		t.Errorf("Expected 2 customers, got %v", customers)
	}
}

func TestGetUnknownJig(t *testing.T) {
	r, _ := setupEnv(t)

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/jigs/no-such-id", nil, testutil.UserToken())
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
}

func TestUpdateStatusRecordsTransfer(t *testing.T) {
	r, svc := setupEnv(t)
	jig := createJig(t, svc, "BMW", "001")

	w := testutil.DoRequest(r, http.MethodPut, "/api/v1/jigs/"+jig.StoreID+"/status",
		map[string]interface{}{"status": "In Use"}, testutil.AdminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["status"] != "In Use" {
		t.Errorf("Expected In Use, got %v", data["status"])
	}
	transfers := data["transferHistory"].([]interface{})
	if len(transfers) != 1 {
		t.Fatalf("Expected 1 transfer entry, got %d", len(transfers))
	}
	entry := transfers[0].(map[string]interface{})
	if entry["type"] != "Submission" || entry["from"] != "Storage" || entry["to"] != "Production" {
		t.Errorf("Unexpected transfer entry: %v", entry)
	}
	// The recipient comes from the signed-in user's display name.
	if entry["recipient"] != "Test Admin" {
		t.Errorf("Expected recipient Test Admin, got %v", entry["recipient"])
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	r, svc := setupEnv(t)
	jig := createJig(t, svc, "BMW", "001")

	w := testutil.DoRequest(r, http.MethodPut, "/api/v1/jigs/"+jig.StoreID+"/status",
		map[string]interface{}{"status": "Lost"}, testutil.UserToken())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestAddMaintenanceViaAPI(t *testing.T) {
	r, svc := setupEnv(t)
	jig := createJig(t, svc, "BMW", "001")

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/jigs/"+jig.StoreID+"/maintenance",
		map[string]interface{}{
			"checkResult":      "NOK",
			"issue":            "Cracked pin",
			"correctiveAction": "Pin replaced",
			"performedBy":      "Kovac",
		}, testutil.UserToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["status"] != "Under Maintenance" {
		t.Errorf("Expected Under Maintenance, got %v", data["status"])
	}
	records := data["maintenanceHistory"].([]interface{})
	if len(records) != 1 {
		t.Fatalf("Expected 1 maintenance entry, got %d", len(records))
	}
}

func TestAddMaintenanceNOKWithoutIssue(t *testing.T) {
	r, svc := setupEnv(t)
	jig := createJig(t, svc, "BMW", "001")

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/jigs/"+jig.StoreID+"/maintenance",
		map[string]interface{}{"checkResult": "NOK", "performedBy": "Kovac"}, testutil.UserToken())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestDeleteRequiresAdministrator(t *testing.T) {
	r, svc := setupEnv(t)
	jig := createJig(t, svc, "BMW", "001")

	w := testutil.DoRequest(r, http.MethodDelete, "/api/v1/jigs/"+jig.StoreID, nil, testutil.UserToken())
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for non-admin, got %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodDelete, "/api/v1/jigs/"+jig.StoreID, nil, testutil.AdminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for admin, got %d", w.Code)
	}

	// Deleting the same id again still succeeds.
	refresh(t, svc)
	w = testutil.DoRequest(r, http.MethodDelete, "/api/v1/jigs/"+jig.StoreID, nil, testutil.AdminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for repeated delete, got %d", w.Code)
	}
}

func TestImportReplacesCollection(t *testing.T) {
	r, svc := setupEnv(t)
	createJig(t, svc, "BMW", "001")

	body := []map[string]interface{}{
		{
			"id": "J_VWG_100", "customer": "VW",
			"dateOfReceive":    "2025-01-10T00:00:00Z",
			"productModelType": "Golf Fixture", "receivedFrom": "VW",
			"storageLocation": "Rack C1", "responsiblePerson": "Maly",
			"status": "In Stock",
		},
	}

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/jigs/import", body, testutil.UserToken())
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for non-admin import, got %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/jigs/import", body, testutil.AdminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	refresh(t, svc)
	jigs := svc.Inventory.Jigs()
	if len(jigs) != 1 || jigs[0].Code != "J_VWG_100" {
		t.Fatalf("Import did not replace the collection: %+v", jigs)
	}
}

func TestImportRejectsMalformedRecords(t *testing.T) {
	r, _ := setupEnv(t)

	// First record carries no id.
	body := []map[string]interface{}{{"customer": "VW"}}
	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/jigs/import", body, testutil.AdminToken())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}

	// Not an array at all.
	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/jigs/import",
		map[string]interface{}{"records": []string{}}, testutil.AdminToken())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for non-array body, got %d", w.Code)
	}
}

func TestCustomersEndpoint(t *testing.T) {
	r, svc := setupEnv(t)
	createJig(t, svc, "BMW", "001")
	createJig(t, svc, "AUD", "002")
	createJig(t, svc, "BMW", "003")

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/customers", nil, testutil.UserToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	customers := resp["data"].([]interface{})
	if len(customers) != 2 || customers[0] != "AUD" || customers[1] != "BMW" {
		t.Errorf("Expected [AUD BMW], got %v", customers)
	}
}
