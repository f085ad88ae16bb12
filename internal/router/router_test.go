package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cane-truck-registry/internal/handler"
	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/router"
	"github.com/iliyamo/cane-truck-registry/internal/service"
	"github.com/iliyamo/cane-truck-registry/internal/service/servicetest"
	"github.com/iliyamo/cane-truck-registry/internal/utils"
)

const secret = "router-test-secret-0123"

type env struct {
	t       *testing.T
	e       *echo.Echo
	store   *servicetest.Store
	events  *servicetest.Publisher
	factory *model.Reference
	gate    *model.Reference
	contr   *model.Reference
}

type body struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
	Pagination *struct {
		Total    int `json:"total"`
		Page     int `json:"page"`
		PageSize int `json:"pageSize"`
		Pages    int `json:"pages"`
	} `json:"pagination"`
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log, _ := test.NewNullLogger()
	store := servicetest.NewStore()
	events := &servicetest.Publisher{}
	cache := &servicetest.Cache{}

	hash, err := utils.HashPassword("s3cret!", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	contr := store.AddReference(model.KindContractor, "C", true)
	factory := store.AddReference(model.KindFactory, "F", true)
	gate := store.AddReference(model.KindGate, "G", true)
	store.AddReference(model.KindGate, "Closed", false)
	gid := gate.ID
	store.AddUser(model.User{Email: "admin@yard.test", Name: "Admin", Role: model.RoleAdmin, IsActive: true, PasswordHash: hash})
	store.AddUser(model.User{Email: "m1@yard.test", Name: "Soldier One", Role: model.RoleMilitary, GateID: &gid, IsActive: true, PasswordHash: hash})
	store.AddUser(model.User{Email: "m2@yard.test", Name: "Soldier Two", Role: model.RoleMilitary, GateID: &gid, IsActive: true, PasswordHash: hash})

	refs := map[model.ReferenceKind]*handler.ReferenceHandler{}
	for _, k := range model.ReferenceKinds {
		refs[k] = handler.NewReferenceHandler(service.NewReferenceRegistry(store.References(k), store.Stats(), cache, log), log)
	}
	e := router.New(router.Deps{
		Log:        log,
		Access:     service.NewAccessControl(store.Users(), secret),
		Auth:       handler.NewAuthHandler(service.NewSessionIssuer(store.Users(), secret, time.Hour, log), log),
		References: refs,
		Trucks:     handler.NewTruckHandler(service.NewTruckLedger(store.Trucks(), store.ReferenceMap(), store.Stats(), events, service.DefaultLedgerPolicy, log), log),
		Users:      handler.NewUserHandler(service.NewUserAdmin(store.Users(), store.References(model.KindGate), store.Stats(), bcrypt.MinCost, log), log),
		Stats:      handler.NewStatsHandler(service.NewReports(store.Stats(), store.ReferenceMap(), log), log),
	})
	return &env{t: t, e: e, store: store, events: events, factory: factory, gate: gate, contr: contr}
}

func (v *env) do(method, path, token string, payload interface{}) (int, body) {
	v.t.Helper()
	var rd *bytes.Reader
	if payload != nil {
		bs, err := json.Marshal(payload)
		if err != nil {
			v.t.Fatal(err)
		}
		rd = bytes.NewReader(bs)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	var out body
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		v.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, out
}

func (v *env) login(email string) string {
	v.t.Helper()
	code, b := v.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "s3cret!"})
	if code != http.StatusOK {
		v.t.Fatalf("login %s: %d %s", email, code, b.Message)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(b.Data, &data); err != nil || data.Token == "" {
		v.t.Fatalf("login token: %v", err)
	}
	return data.Token
}

func (v *env) truckPayload(plate interface{}) map[string]interface{} {
	return map[string]interface{}{
		"plateNumber":       plate,
		"contractorId":      v.contr.ID,
		"factoryId":         fmt.Sprint(v.factory.ID),
		"factoryCardNumber": "5501",
		"deviceCardNumber":  9902,
	}
}

func TestHealth(t *testing.T) {
	v := newEnv(t)
	code, b := v.do(http.MethodGet, "/api/health", "", nil)
	if code != http.StatusOK || !b.Success || b.Message != "server is running" {
		t.Fatalf("got %d %+v", code, b)
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	v := newEnv(t)
	code, b := v.do(http.MethodGet, "/api/nowhere", "", nil)
	if code != http.StatusNotFound || b.Success || b.Message == "" {
		t.Fatalf("got %d %+v", code, b)
	}
}

func TestLoginAndMe(t *testing.T) {
	v := newEnv(t)

	if code, _ := v.do(http.MethodGet, "/api/auth/me", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("me without token: %d", code)
	}
	if code, _ := v.do(http.MethodGet, "/api/auth/me", "garbage", nil); code != http.StatusUnauthorized {
		t.Fatalf("me with garbage token: %d", code)
	}
	code, b := v.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "m1@yard.test", "password": "wrong"})
	if code != http.StatusUnauthorized || b.Success {
		t.Fatalf("bad password: %d", code)
	}

	token := v.login("M1@Yard.test")
	code, b = v.do(http.MethodGet, "/api/auth/me", token, nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d %s", code, b.Message)
	}
	var me map[string]interface{}
	_ = json.Unmarshal(b.Data, &me)
	if me["email"] != "m1@yard.test" || me["role"] != "military" {
		t.Fatalf("me: %v", me)
	}
	if _, leaked := me["passwordHash"]; leaked {
		t.Fatal("password hash in response")
	}
}

func TestPublicReferenceListHidesInactive(t *testing.T) {
	v := newEnv(t)
	code, b := v.do(http.MethodGet, "/api/gates", "", nil)
	if code != http.StatusOK {
		t.Fatalf("gates: %d", code)
	}
	var gates []map[string]interface{}
	_ = json.Unmarshal(b.Data, &gates)
	if len(gates) != 1 || gates[0]["name"] != "G" {
		t.Fatalf("public gates: %v", gates)
	}

	admin := v.login("admin@yard.test")
	_, b = v.do(http.MethodGet, "/api/gates?includeInactive=true", admin, nil)
	_ = json.Unmarshal(b.Data, &gates)
	if len(gates) != 2 {
		t.Fatalf("admin gates: %v", gates)
	}
}

func TestReferenceMutationsAreAdminOnly(t *testing.T) {
	v := newEnv(t)
	soldier := v.login("m1@yard.test")
	admin := v.login("admin@yard.test")
	payload := map[string]string{"name": "Northern Haulage", "phone": "+989121234567"}

	if code, _ := v.do(http.MethodPost, "/api/contractors", "", payload); code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: %d", code)
	}
	if code, _ := v.do(http.MethodPost, "/api/contractors", soldier, payload); code != http.StatusForbidden {
		t.Fatalf("military create: %d", code)
	}
	code, b := v.do(http.MethodPost, "/api/contractors", admin, payload)
	if code != http.StatusCreated || !b.Success {
		t.Fatalf("admin create: %d %s", code, b.Message)
	}
	if code, _ := v.do(http.MethodPost, "/api/contractors", admin, payload); code != http.StatusBadRequest {
		t.Fatalf("duplicate create: %d", code)
	}
}

func TestRequestValidation(t *testing.T) {
	v := newEnv(t)
	soldier := v.login("m1@yard.test")
	admin := v.login("admin@yard.test")

	noFactory := v.truckPayload("31")
	delete(noFactory, "factoryId")
	longNotes := v.truckPayload("32")
	longNotes["notes"] = strings.Repeat("n", 501)

	cases := []struct {
		name    string
		method  string
		path    string
		token   string
		payload interface{}
		field   string
	}{
		{"reference without name", http.MethodPost, "/api/factories", admin, map[string]string{"location": "Shush"}, "name"},
		{"blank reference name", http.MethodPost, "/api/factories", admin, map[string]string{"name": "   "}, "name"},
		{"long reference name", http.MethodPost, "/api/gates", admin, map[string]string{"name": strings.Repeat("g", 101)}, "name"},
		{"short phone", http.MethodPost, "/api/contractors", admin, map[string]string{"name": "P1", "phone": "12345"}, "phone"},
		{"letters in phone", http.MethodPost, "/api/contractors", admin, map[string]string{"name": "P2", "phone": "0912abc4567"}, "phone"},
		{"long address", http.MethodPost, "/api/contractors", admin, map[string]string{"name": "P3", "address": strings.Repeat("a", 201)}, "address"},
		{"long rename", http.MethodPut, fmt.Sprintf("/api/contractors/%d", v.contr.ID), admin, map[string]string{"name": strings.Repeat("n", 101)}, "name"},
		{"bad email", http.MethodPost, "/api/users", admin, map[string]interface{}{"email": "not-an-email", "name": "A", "password": "123456", "gateId": v.gate.ID}, "email"},
		{"short password", http.MethodPost, "/api/users", admin, map[string]interface{}{"email": "a@yard.test", "name": "A", "password": "12345", "gateId": v.gate.ID}, "password"},
		{"short password change", http.MethodPut, "/api/users/999/password", admin, map[string]string{"password": "123"}, "password"},
		{"missing factory", http.MethodPost, "/api/trucks/register-new-truck", soldier, noFactory, "factoryId"},
		{"long notes", http.MethodPost, "/api/trucks/register-new-truck", soldier, longNotes, "notes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, b := v.do(tc.method, tc.path, tc.token, tc.payload)
			if code != http.StatusBadRequest || b.Success {
				t.Fatalf("code: %d %s", code, b.Message)
			}
			if len(b.Errors) != 1 || b.Errors[0].Field != tc.field {
				t.Fatalf("errors: %+v", b.Errors)
			}
		})
	}

	if code, b := v.do(http.MethodPost, "/api/contractors", admin, map[string]string{"name": "P4", "phone": "+989121234567"}); code != http.StatusCreated {
		t.Fatalf("valid contractor: %d %+v", code, b.Errors)
	}
}

func TestTruckLifecycle(t *testing.T) {
	v := newEnv(t)
	soldier := v.login("m1@yard.test")
	other := v.login("m2@yard.test")
	admin := v.login("admin@yard.test")

	code, b := v.do(http.MethodPost, "/api/trucks/register-new-truck", soldier, v.truckPayload("1234"))
	if code != http.StatusCreated {
		t.Fatalf("register: %d %s", code, b.Message)
	}
	var truck struct {
		ID          uint64 `json:"id"`
		PlateNumber int64  `json:"plateNumber"`
		GateID      uint64 `json:"gateId"`
		Status      string `json:"status"`
		CanEdit     bool   `json:"canEdit"`
	}
	_ = json.Unmarshal(b.Data, &truck)
	if truck.PlateNumber != 1234 || truck.GateID != v.gate.ID || truck.Status != "registered" || !truck.CanEdit {
		t.Fatalf("registered truck: %+v", truck)
	}
	if got := v.events.Types(); len(got) != 1 {
		t.Fatalf("events: %v", got)
	}

	if code, _ := v.do(http.MethodPost, "/api/trucks/register-new-truck", other, v.truckPayload(1234)); code != http.StatusBadRequest {
		t.Fatalf("duplicate plate: %d", code)
	}
	if code, _ := v.do(http.MethodPost, "/api/trucks/register-new-truck", admin, v.truckPayload(77)); code != http.StatusForbidden {
		t.Fatalf("admin register: %d", code)
	}

	path := fmt.Sprintf("/api/trucks/%d", truck.ID)
	if code, _ := v.do(http.MethodPut, path, other, map[string]string{"notes": "mine now"}); code != http.StatusForbidden {
		t.Fatalf("foreign edit: %d", code)
	}
	if code, b := v.do(http.MethodPut, path, soldier, map[string]string{"notes": "tarp torn"}); code != http.StatusOK {
		t.Fatalf("own edit: %d %s", code, b.Message)
	}

	factoryPath := fmt.Sprintf("/api/factories/%d", v.factory.ID)
	if code, b := v.do(http.MethodDelete, factoryPath, admin, nil); code != http.StatusBadRequest || b.Success {
		t.Fatalf("delete referenced factory: %d", code)
	}

	code, b = v.do(http.MethodPatch, path+"/status", soldier, map[string]string{"status": "in_transit"})
	if code != http.StatusOK {
		t.Fatalf("transition: %d %s", code, b.Message)
	}
	code, _ = v.do(http.MethodPatch, path+"/status", admin, map[string]string{"status": "registered"})
	if code != http.StatusBadRequest {
		t.Fatalf("backwards transition: %d", code)
	}
}

func TestTruckListingsByRole(t *testing.T) {
	v := newEnv(t)
	soldier := v.login("m1@yard.test")
	other := v.login("m2@yard.test")
	admin := v.login("admin@yard.test")

	for _, p := range []string{"101", "102", "103"} {
		if code, b := v.do(http.MethodPost, "/api/trucks/register-new-truck", soldier, v.truckPayload(p)); code != http.StatusCreated {
			t.Fatalf("register %s: %d %s", p, code, b.Message)
		}
	}
	if code, b := v.do(http.MethodPost, "/api/trucks/register-new-truck", other, v.truckPayload("201")); code != http.StatusCreated {
		t.Fatalf("register 201: %d %s", code, b.Message)
	}

	if code, _ := v.do(http.MethodGet, "/api/trucks", soldier, nil); code != http.StatusForbidden {
		t.Fatalf("military full list: %d", code)
	}

	code, b := v.do(http.MethodGet, "/api/trucks?page=1&pageSize=2", admin, nil)
	if code != http.StatusOK || b.Pagination == nil {
		t.Fatalf("admin list: %d %+v", code, b)
	}
	if b.Pagination.Total != 4 || b.Pagination.Pages != 2 || b.Pagination.PageSize != 2 {
		t.Fatalf("pagination: %+v", b.Pagination)
	}

	_, b = v.do(http.MethodGet, "/api/trucks/my-trucks", soldier, nil)
	if b.Pagination == nil || b.Pagination.Total != 3 {
		t.Fatalf("my trucks: %+v", b.Pagination)
	}

	code, b = v.do(http.MethodGet, "/api/trucks/my-stats", soldier, nil)
	var st struct {
		TotalTrucks int64 `json:"totalTrucks"`
	}
	_ = json.Unmarshal(b.Data, &st)
	if code != http.StatusOK || st.TotalTrucks != 3 {
		t.Fatalf("my stats: %d %+v", code, st)
	}

	if code, _ := v.do(http.MethodGet, "/api/trucks?dateFrom=nope", admin, nil); code != http.StatusBadRequest {
		t.Fatalf("bad date filter: %d", code)
	}
	if code, _ := v.do(http.MethodGet, "/api/trucks?page=4611686018427387905", admin, nil); code != http.StatusBadRequest {
		t.Fatalf("overflowing page: %d", code)
	}
}

func TestStatsAreAdminOnly(t *testing.T) {
	v := newEnv(t)
	soldier := v.login("m1@yard.test")
	admin := v.login("admin@yard.test")
	if code, b := v.do(http.MethodPost, "/api/trucks/register-new-truck", soldier, v.truckPayload("55")); code != http.StatusCreated {
		t.Fatalf("register: %d %s", code, b.Message)
	}

	if code, _ := v.do(http.MethodGet, "/api/stats/dashboard", soldier, nil); code != http.StatusForbidden {
		t.Fatalf("military dashboard: %d", code)
	}
	code, b := v.do(http.MethodGet, "/api/stats/dashboard?period=week", admin, nil)
	if code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", code, b.Message)
	}
	var d struct {
		TotalTrucks int64 `json:"totalTrucks"`
	}
	_ = json.Unmarshal(b.Data, &d)
	if d.TotalTrucks != 1 {
		t.Fatalf("dashboard totals: %+v", d)
	}
	if code, _ := v.do(http.MethodGet, "/api/stats/dashboard?period=decade", admin, nil); code != http.StatusBadRequest {
		t.Fatalf("bad period: %d", code)
	}
	if code, _ := v.do(http.MethodGet, fmt.Sprintf("/api/stats/factory/%d", v.factory.ID), admin, nil); code != http.StatusOK {
		t.Fatalf("factory report: %d", code)
	}
	if code, _ := v.do(http.MethodPost, "/api/admin/reconcile-counters", admin, nil); code != http.StatusOK {
		t.Fatalf("reconcile: %d", code)
	}
}
