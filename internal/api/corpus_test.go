package api

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"testing"
)

func TestListCorpora_ParsesEnvelope(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rag/list" {
			t.Errorf("path = %q, want /api/rag/list", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
  "rags": [
    {
      "name": "contracts",
      "created_at": "2025-03-01T10:00:00",
      "files_info": [
        {"name": "lease.pdf", "size": 20480, "created_at": "2025-03-01T09:59:00"}
      ]
    },
    {"name": "manuals", "created_at": "2025-02-10T08:00:00", "files_info": []}
  ]
}`))
	})

	corpora, err := c.ListCorpora(context.Background())
	if err != nil {
		t.Fatalf("ListCorpora() failed: %v", err)
	}
	if len(corpora) != 2 {
		t.Fatalf("got %d corpora, want 2", len(corpora))
	}
	if corpora[0].Name != "contracts" {
		t.Errorf("Name = %q, want %q", corpora[0].Name, "contracts")
	}
	if len(corpora[0].Files) != 1 {
		t.Fatalf("got %d files, want 1", len(corpora[0].Files))
	}
	if corpora[0].Files[0].Size != 20480 {
		t.Errorf("Size = %d, want 20480", corpora[0].Files[0].Size)
	}
}

func TestBuildCorpus_PostsFilesAndName(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.URL.Path != "/api/rag/build" {
			t.Errorf("path = %q, want /api/rag/build", r.URL.Path)
		}

		var body struct {
			Files []string `json:"files"`
			Name  string   `json:"rag_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding build body: %v", err)
		}
		if !reflect.DeepEqual(body.Files, []string{"lease.pdf", "addendum.pdf"}) {
			t.Errorf("files = %v, want the uploaded paths", body.Files)
		}
		if body.Name != "contracts" {
			t.Errorf("rag_name = %q, want %q", body.Name, "contracts")
		}
		w.Write([]byte(`{"success": true}`))
	})

	result, err := c.BuildCorpus(context.Background(), "contracts", []string{"lease.pdf", "addendum.pdf"})
	if err != nil {
		t.Fatalf("BuildCorpus() failed: %v", err)
	}
	if !result.Success || result.Skipped {
		t.Errorf("result = %+v, want success without skip", result)
	}
}

func TestBuildCorpus_ReportsSkip(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "skipped": true}`))
	})

	result, err := c.BuildCorpus(context.Background(), "contracts", []string{"lease.pdf"})
	if err != nil {
		t.Fatalf("BuildCorpus() failed: %v", err)
	}
	if !result.Skipped {
		t.Error("Skipped = false, want true for an already-built corpus")
	}
}

func TestRenameCorpus_PostsOldAndNewNames(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rag/rename" {
			t.Errorf("path = %q, want /api/rag/rename", r.URL.Path)
		}
		var body struct {
			OldName string `json:"old_name"`
			NewName string `json:"new_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding rename body: %v", err)
		}
		if body.OldName != "contracts" || body.NewName != "contracts-2025" {
			t.Errorf("rename body = %+v, want contracts -> contracts-2025", body)
		}
		w.Write([]byte(`{"success": true}`))
	})

	if err := c.RenameCorpus(context.Background(), "contracts", "contracts-2025"); err != nil {
		t.Fatalf("RenameCorpus() failed: %v", err)
	}
}

func TestDeleteCorpus_PostsName(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rag/delete" {
			t.Errorf("path = %q, want /api/rag/delete", r.URL.Path)
		}
		var body struct {
			Name string `json:"rag_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding delete body: %v", err)
		}
		if body.Name != "contracts" {
			t.Errorf("rag_name = %q, want %q", body.Name, "contracts")
		}
		w.Write([]byte(`{"success": true}`))
	})

	if err := c.DeleteCorpus(context.Background(), "contracts"); err != nil {
		t.Fatalf("DeleteCorpus() failed: %v", err)
	}
}
