package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

func TestRemoteBootstrap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bootstrap" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(protocol.Bootstrap{
			Version: "1.2.3",
			Session: protocol.Session{Mode: protocol.ModeStarter, Theme: protocol.ThemeDark},
			Voices:  []string{"ivy"},
		})
	}))
	defer srv.Close()

	boot, err := NewRemote(srv.URL, "").Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if boot.Version != "1.2.3" || boot.Session.Mode != protocol.ModeStarter {
		t.Fatalf("bootstrap = %+v", boot)
	}
}

func TestRemoteSendsBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(protocol.Bootstrap{})
	}))
	defer srv.Close()

	if _, err := NewRemote(srv.URL, "sesame").Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if got != "Bearer sesame" {
		t.Fatalf("Authorization = %q, want Bearer sesame", got)
	}
}

func TestRemoteOpenPathPostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/open/path" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Path != "/books/Walden.txt" {
			t.Errorf("path = %q", req.Path)
		}
		json.NewEncoder(w).Encode(protocol.OpenResult{
			Session: protocol.Session{Mode: protocol.ModeReader, ResourceID: "abc"},
			Reader:  &protocol.ReaderView{ResourceID: "abc", Title: "Walden"},
		})
	}))
	defer srv.Close()

	res, err := NewRemote(srv.URL, "").OpenPath(context.Background(), "/books/Walden.txt")
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if res.Reader == nil || res.Reader.Title != "Walden" {
		t.Fatalf("result = %+v", res)
	}
}

func TestRemoteDecodesErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(&protocol.Error{Code: protocol.CodeConflict, Message: "no document open"})
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, "").NextPage(context.Background())
	if !protocol.IsCode(err, protocol.CodeConflict) {
		t.Fatalf("err = %v, want conflict code", err)
	}
}

func TestRemotePlainTextErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, "").NextPage(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if protocol.IsCode(err, protocol.CodeConflict) || protocol.IsCode(err, protocol.CodeUnknown) {
		t.Fatalf("plain failure should not decode as a classified error: %v", err)
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want status and body", err)
	}
}

func TestRemoteCatalogForceFlag(t *testing.T) {
	var forces []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forces = append(forces, r.URL.Query().Get("force"))
		json.NewEncoder(w).Encode([]protocol.CatalogEntry{})
	}))
	defer srv.Close()

	c := NewRemote(srv.URL, "")
	if _, err := c.Catalog(context.Background(), false); err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if _, err := c.Catalog(context.Background(), true); err != nil {
		t.Fatalf("Catalog force: %v", err)
	}
	if len(forces) != 2 || forces[0] != "" || forces[1] != "1" {
		t.Fatalf("force params = %v", forces)
	}
}

func TestRemoteDeleteRecent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/api/recents/abc-123" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]protocol.RecentEntry{{ResourceID: "zzz"}})
	}))
	defer srv.Close()

	entries, err := NewRemote(srv.URL, "").DeleteRecent(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("DeleteRecent: %v", err)
	}
	if len(entries) != 1 || entries[0].ResourceID != "zzz" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestRemoteSetLogLevel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Level string `json:"level"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(struct {
			Level string `json:"level"`
		}{Level: req.Level})
	}))
	defer srv.Close()

	applied, err := NewRemote(srv.URL, "").SetLogLevel(context.Background(), "debug")
	if err != nil {
		t.Fatalf("SetLogLevel: %v", err)
	}
	if applied != "debug" {
		t.Fatalf("applied = %q, want debug", applied)
	}
}
