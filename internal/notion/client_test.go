package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recorded struct {
	method string
	path   string
	auth   string
	ver    string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, reply string, got *recorded) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		got.ver = r.Header.Get("Notion-Version")
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			got.body = map[string]any{}
			_ = json.Unmarshal(data, &got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return NewClient("secret_abcdefghijklmnopqrstu", Config{BaseURL: srv.URL})
}

func TestQueryDatabase(t *testing.T) {
	var got recorded
	c := newTestServer(t, http.StatusOK, `{
		"results": [{"id": "p1", "properties": {"Name": {"type": "title", "title": [{"plain_text": "Dentist"}]}}}],
		"has_more": true,
		"next_cursor": "cur-2"
	}`, &got)

	res, err := c.QueryDatabase(context.Background(), "db1")
	if err != nil {
		t.Fatalf("QueryDatabase: %v", err)
	}

	if got.method != http.MethodPost || got.path != "/databases/db1/query" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.auth != "Bearer secret_abcdefghijklmnopqrstu" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.ver != DefaultVersion {
		t.Errorf("Notion-Version = %q", got.ver)
	}
	if got.body["page_size"] != float64(PageSize) {
		t.Errorf("page_size = %v, want %d", got.body["page_size"], PageSize)
	}
	if len(res.Results) != 1 || res.Results[0].ID != "p1" {
		t.Fatalf("results = %+v", res.Results)
	}
	if !res.HasMore || res.NextCursor == nil || *res.NextCursor != "cur-2" {
		t.Errorf("pagination fields not decoded: %+v", res)
	}
}

func TestCreatePage_Body(t *testing.T) {
	var got recorded
	c := newTestServer(t, http.StatusOK, `{"id": "new-page"}`, &got)

	page, err := c.CreatePage(context.Background(), NewPage{
		DatabaseID: "db1",
		TitleField: "Task",
		Title:      "Standup",
		DateField:  "When",
		Date:       "2024-03-05",
	})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if page.ID != "new-page" {
		t.Errorf("page id = %q", page.ID)
	}
	if got.path != "/pages" {
		t.Errorf("path = %q", got.path)
	}

	parent := got.body["parent"].(map[string]any)
	if parent["database_id"] != "db1" {
		t.Errorf("parent = %v", parent)
	}
	props := got.body["properties"].(map[string]any)
	title := props["Task"].(map[string]any)["title"].([]any)[0].(map[string]any)["text"].(map[string]any)["content"]
	if title != "Standup" {
		t.Errorf("title content = %v", title)
	}
	start := props["When"].(map[string]any)["date"].(map[string]any)["start"]
	if start != "2024-03-05" {
		t.Errorf("date start = %v", start)
	}
}

func TestUpdatePage_OnlySuppliedFields(t *testing.T) {
	var got recorded
	c := newTestServer(t, http.StatusOK, `{"id": "p1"}`, &got)

	title := "Renamed"
	_, err := c.UpdatePage(context.Background(), "p1", PagePatch{
		TitleField: "Name",
		Title:      &title,
		DateField:  "Date",
	})
	if err != nil {
		t.Fatalf("UpdatePage: %v", err)
	}
	if got.method != http.MethodPatch || got.path != "/pages/p1" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	props := got.body["properties"].(map[string]any)
	if _, ok := props["Date"]; ok {
		t.Error("date sent although not supplied")
	}
	if _, ok := props["Name"]; !ok {
		t.Error("title not sent")
	}
}

func TestArchivePage(t *testing.T) {
	var got recorded
	c := newTestServer(t, http.StatusOK, `{}`, &got)

	if err := c.ArchivePage(context.Background(), "p9"); err != nil {
		t.Fatalf("ArchivePage: %v", err)
	}
	if got.method != http.MethodPatch || got.path != "/pages/p9" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.body["archived"] != true {
		t.Errorf("body = %v", got.body)
	}
}

func TestAPIError(t *testing.T) {
	var got recorded
	c := newTestServer(t, http.StatusUnauthorized, `{"message":"API token is invalid."}`, &got)

	_, err := c.ListDatabases(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := IsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d", apiErr.Status)
	}
	var target *APIError
	if !errors.As(err, &target) {
		t.Error("errors.As failed")
	}
}

func TestListAndGetDatabase(t *testing.T) {
	var got recorded
	c := newTestServer(t, http.StatusOK, `{"results":[{"id":"d1","title":[{"plain_text":"Team "},{"plain_text":"Events"}],"properties":{}}]}`, &got)

	dbs, err := c.ListDatabases(context.Background())
	if err != nil {
		t.Fatalf("ListDatabases: %v", err)
	}
	if len(dbs) != 1 || dbs[0].Name() != "Team Events" {
		t.Fatalf("databases = %+v", dbs)
	}
	if got.method != http.MethodGet || got.path != "/databases" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
}
