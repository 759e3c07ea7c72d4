package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/erazemk/gimmie/internal/auth"
	"github.com/erazemk/gimmie/internal/db"
	"github.com/erazemk/gimmie/internal/exchange"
	"github.com/erazemk/gimmie/internal/list"
	"github.com/erazemk/gimmie/internal/metrics"
	"github.com/erazemk/gimmie/internal/model"
	"github.com/erazemk/gimmie/internal/store"
)

const testJWTSecret = "test-secret"

func newTestServer(t *testing.T, mode list.ReplaceMode) *httptest.Server {
	t.Helper()
	st := store.New(db.NewTestDB(t), db.SQLite)

	hash, err := auth.HashPassword("password")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.InitPasswordHash(context.Background(), hash); err != nil {
		t.Fatal(err)
	}

	m := metrics.New()
	svc := list.NewService(st, m)
	router := NewRouter(Options{
		Store:       st,
		List:        svc,
		Transformer: exchange.NewTransformer(svc, mode),
		Metrics:     m,
		JWTSecret:   testJWTSecret,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func login(t *testing.T, server *httptest.Server, member string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"member": member, "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	server := newTestServer(t, list.ReplaceArchive)
	return server, login(t, server, "Ana")
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends an authenticated request and decodes a JSON response into out.
func do(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func createItems(t *testing.T, server *httptest.Server, token string, names ...string) []model.Item {
	t.Helper()
	var items []model.Item
	for _, name := range names {
		var item model.Item
		if code := do(t, "POST", server.URL+"/api/items", token, map[string]any{"name": name}, &item); code != http.StatusCreated {
			t.Fatalf("create %s: expected 201, got %d", name, code)
		}
		items = append(items, item)
	}
	return items
}

func TestLoginEndpoint(t *testing.T) {
	server := newTestServer(t, list.ReplaceArchive)

	body, _ := json.Marshal(map[string]string{"member": "Ana", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"member": "Ana", "password": "password"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			session = c
		}
	}
	resp.Body.Close()
	if session == nil || !session.HttpOnly {
		t.Fatal("expected an HttpOnly session cookie")
	}

	// The cookie alone authenticates.
	req, _ := http.NewRequest("GET", server.URL+"/api/items", nil)
	req.AddCookie(session)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with session cookie, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	server, token := setupTestServer(t)

	if code := do(t, "POST", server.URL+"/api/auth/logout", token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if code := do(t, "GET", server.URL+"/api/items", token, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", code)
	}
}

func TestChangePassword(t *testing.T) {
	server, token := setupTestServer(t)

	code := do(t, "PUT", server.URL+"/api/auth/password", token,
		map[string]string{"current_password": "wrong", "new_password": "x"}, nil)
	if code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong current password, got %d", code)
	}

	code = do(t, "PUT", server.URL+"/api/auth/password", token,
		map[string]string{"current_password": "password", "new_password": "letmein"}, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	body, _ := json.Marshal(map[string]string{"password": "letmein"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected login with new password to succeed, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedAccess(t *testing.T) {
	server := newTestServer(t, list.ReplaceArchive)

	resp, _ := http.Get(server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(server.URL + "/api/items?health=1")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for health check, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(server.URL + "/api/items?health=0")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for health=0, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(server.URL + "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for /healthz, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestItemsAPIFlow(t *testing.T) {
	server, token := setupTestServer(t)

	// Create item with defaults filled in from the session.
	var bike model.Item
	code := do(t, "POST", server.URL+"/api/items", token, map[string]any{
		"name": "Bike",
		"cost": 129.99,
		"link": "shop.example.com/bike",
	}, &bike)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if bike.AddedBy != "Ana" || bike.Type != model.CategoryWant || bike.Link != "https://shop.example.com/bike" || bike.Position != 1 {
		t.Errorf("unexpected item: %+v", bike)
	}

	// Invalid input.
	var errResp map[string]string
	code = do(t, "POST", server.URL+"/api/items", token, map[string]any{"name": "Bad", "cost": -5}, &errResp)
	if code != http.StatusBadRequest || !strings.Contains(errResp["error"], "cost") {
		t.Errorf("expected 400 mentioning cost, got %d %v", code, errResp)
	}

	// Partial update clears the cost and keeps the rest.
	var updated model.Item
	code = do(t, "PUT", server.URL+"/api/items/"+itoa(bike.ID), token, map[string]any{"cost": nil, "type": "need"}, &updated)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if updated.Cost.Valid || updated.Type != model.CategoryNeed || updated.Name != "Bike" {
		t.Errorf("unexpected update result: %+v", updated)
	}

	if code := do(t, "PUT", server.URL+"/api/items/999", token, map[string]any{"name": "x"}, nil); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	if code := do(t, "PUT", server.URL+"/api/items/abc", token, map[string]any{"name": "x"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", code)
	}
}

func TestMoveAndArchiveScenario(t *testing.T) {
	server, token := setupTestServer(t)
	items := createItems(t, server, token, "A", "B", "C")
	a, b := items[0], items[1]

	var got []model.Item
	code := do(t, "POST", server.URL+"/api/items/"+itoa(a.ID)+"/move", token, map[string]string{"direction": "down"}, &got)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(got) != 3 || got[0].Name != "B" || got[1].Name != "A" || got[2].Name != "C" {
		t.Fatalf("unexpected order after move: %+v", got)
	}

	if code := do(t, "POST", server.URL+"/api/items/"+itoa(a.ID)+"/move", token, map[string]string{"direction": "left"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad direction, got %d", code)
	}

	if code := do(t, "DELETE", server.URL+"/api/items/"+itoa(b.ID), token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if code := do(t, "DELETE", server.URL+"/api/items/"+itoa(b.ID), token, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 deleting twice, got %d", code)
	}

	got = nil
	do(t, "GET", server.URL+"/api/items", token, nil, &got)
	if len(got) != 2 || got[0].Name != "A" || got[0].Position != 1 || got[1].Name != "C" || got[1].Position != 2 {
		t.Fatalf("unexpected list after delete: %+v", got)
	}

	if code := do(t, "POST", server.URL+"/api/items/"+itoa(got[1].ID)+"/complete", token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}

	var archived []model.ArchiveRecord
	do(t, "GET", server.URL+"/api/archive", token, nil, &archived)
	if len(archived) != 2 || archived[0].Name != "C" || archived[0].Reason != model.ReasonCompleted ||
		archived[1].Name != "B" || archived[1].Reason != model.ReasonDeleted {
		t.Fatalf("unexpected archive: %+v", archived)
	}

	var restored model.Item
	code = do(t, "POST", server.URL+"/api/archive/"+itoa(archived[1].ID)+"/restore", token, nil, &restored)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if restored.Name != "B" || restored.Position != 2 {
		t.Errorf("unexpected restored item: %+v", restored)
	}
	if code := do(t, "POST", server.URL+"/api/archive/"+itoa(archived[1].ID)+"/restore", token, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 restoring twice, got %d", code)
	}
}

func TestExportEndpoint(t *testing.T) {
	server, token := setupTestServer(t)
	items := createItems(t, server, token, "A", "B")
	do(t, "POST", server.URL+"/api/items/"+itoa(items[0].ID)+"/complete", token, nil, nil)

	req, _ := authRequest("GET", server.URL+"/api/export?archive=1", token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "gimmie_export.json") {
		t.Errorf("unexpected Content-Disposition: %q", cd)
	}
	doc, err := exchange.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(doc.Items) != 1 || doc.Items[0].Name != "B" || len(doc.Archive) != 1 {
		t.Errorf("unexpected export: %+v", doc)
	}

	for _, query := range []string{"", "?archive=0", "?archive=false", "?archive=nope"} {
		req, _ := authRequest("GET", server.URL+"/api/export"+query, token, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		doc, err := exchange.Decode(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("Decode %q: %v", query, err)
		}
		if len(doc.Archive) != 0 {
			t.Errorf("export%s included %d archive records", query, len(doc.Archive))
		}
	}
}

func TestImportEndpoint(t *testing.T) {
	server, token := setupTestServer(t)
	createItems(t, server, token, "A", "B", "C")

	doc := `{"items": [{"name": "Second", "position": 2}, {"name": "First", "position": 1}]}`

	// Multipart upload, as sent by a browser form.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "gimmie_export.json")
	io.WriteString(fw, doc)
	mw.Close()

	req, _ := http.NewRequest("POST", server.URL+"/api/import?policy=replace", &body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var result map[string]any
	json.NewDecoder(resp.Body).Decode(&result)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, result)
	}
	if result["items_imported"] != float64(2) || result["archived"] != float64(3) {
		t.Errorf("unexpected summary: %v", result)
	}

	var items []model.Item
	do(t, "GET", server.URL+"/api/items", token, nil, &items)
	if len(items) != 2 || items[0].Name != "Second" || items[1].Name != "First" {
		t.Errorf("unexpected list after import: %+v", items)
	}

	// Raw JSON body with a bad entry is rejected as a whole.
	req, _ = http.NewRequest("POST", server.URL+"/api/import?policy=append", strings.NewReader(`{"items": [{"name": "ok"}, {"name": ""}]}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, _ = http.DefaultClient.Do(req)
	var errResp map[string]string
	json.NewDecoder(resp.Body).Decode(&errResp)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(errResp["error"], "entry 1") {
		t.Errorf("expected 400 naming entry 1, got %d %v", resp.StatusCode, errResp)
	}

	if code := do(t, "POST", server.URL+"/api/import?policy=merge", token, map[string]any{"items": []any{}}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown policy, got %d", code)
	}
}

func TestImportDiscardMode(t *testing.T) {
	server := newTestServer(t, list.ReplaceDiscard)
	token := login(t, server, "Ana")
	createItems(t, server, token, "A", "B", "C")

	var result map[string]any
	code := do(t, "POST", server.URL+"/api/import?policy=replace", token,
		map[string]any{"items": []map[string]string{{"name": "Only"}}}, &result)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if result["discarded"] != float64(3) {
		t.Errorf("unexpected summary: %v", result)
	}

	var archived []model.ArchiveRecord
	do(t, "GET", server.URL+"/api/archive", token, nil, &archived)
	if len(archived) != 0 {
		t.Errorf("expected empty archive, got %d records", len(archived))
	}
}

func TestImportTooLarge(t *testing.T) {
	svc := list.NewService(store.New(db.NewTestDB(t), db.SQLite), nil)
	h := &ExchangeHandler{Transformer: exchange.NewTransformer(svc, list.ReplaceArchive)}

	big := `{"items": [], "pad": "` + strings.Repeat("x", MaxImportSize) + `"}`
	req := httptest.NewRequest("POST", "/api/import", strings.NewReader(big))
	rec := httptest.NewRecorder()
	h.Import(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, token := setupTestServer(t)
	createItems(t, server, token, "A")

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `gimmie_operations_total{op="create",result="ok"} 1`) {
		t.Errorf("expected create counter in metrics output")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
