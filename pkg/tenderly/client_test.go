package tenderly

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Projects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/me/projects" {
			t.Errorf("Expected path /account/me/projects, got %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET method, got %s", r.Method)
		}
		if got := r.Header.Get("X-Access-Key"); got != "test-token" {
			t.Errorf("Expected X-Access-Key test-token, got %q", got)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"projects": []map[string]any{
				{"id": "p1", "name": "First", "slug": "first", "owner": map[string]string{"username": "alice"}},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	client.SetAccessToken("test-token")

	projects, err := client.Projects(context.Background())
	if err != nil {
		t.Fatalf("Projects() error = %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("Projects() returned %d projects, want 1", len(projects))
	}
	if projects[0].Slug != "first" {
		t.Errorf("Projects()[0].Slug = %s, want first", projects[0].Slug)
	}
	if projects[0].Owner.Username != "alice" {
		t.Errorf("Projects()[0].Owner.Username = %s, want alice", projects[0].Owner.Username)
	}
}

func TestClient_Networks_FiltersAndSorts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public-networks" {
			t.Errorf("Expected path /public-networks, got %s", r.URL.Path)
		}

		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "3", "name": "Ropsten"},
			{"id": "d5cffec2-af1e-4d7e-9406-feb235a578de", "name": "Hidden"},
			{"id": "1", "name": "Mainnet"},
			{"id": "137", "name": "Polygon"},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	networks, err := client.Networks(context.Background())
	if err != nil {
		t.Fatalf("Networks() error = %v", err)
	}

	// Denylisted id dropped, remainder sorted ascending by id (string compare).
	want := []string{"1", "137", "3"}
	if len(networks) != len(want) {
		t.Fatalf("Networks() returned %d networks, want %d", len(networks), len(want))
	}
	for i, id := range want {
		if networks[i].ID != id {
			t.Errorf("Networks()[%d].ID = %s, want %s", i, networks[i].ID, id)
		}
	}
}

func TestClient_CheckToken(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/me" {
			t.Errorf("Expected path /account/me, got %s", r.URL.Path)
		}
		w.WriteHeader(status)
	}))
	defer server.Close()

	client := New(server.URL)
	client.SetAccessToken("token")

	ok, err := client.CheckToken(context.Background())
	if err != nil {
		t.Fatalf("CheckToken() error = %v", err)
	}
	if !ok {
		t.Error("CheckToken() = false, want true for 200")
	}

	status = http.StatusUnauthorized
	ok, err = client.CheckToken(context.Background())
	if err != nil {
		t.Fatalf("CheckToken() error = %v", err)
	}
	if ok {
		t.Error("CheckToken() = true, want false for 401")
	}
}

func TestClient_VerifyContracts_BytecodeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/me/verify-contracts" {
			t.Errorf("Expected path /account/me/verify-contracts, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}

		// 200 with mismatch errors must still be treated as a failure.
		json.NewEncoder(w).Encode(map[string]any{
			"bytecode_mismatch_errors": []map[string]string{
				{"contract_id": "c1"},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	err := client.VerifyContracts(context.Background(), Verification{})
	if !errors.Is(err, ErrBytecodeMismatch) {
		t.Errorf("VerifyContracts() error = %v, want ErrBytecodeMismatch", err)
	}
}

func TestClient_VerifyContracts_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v Verification
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			t.Fatalf("decoding verification: %v", err)
		}
		if len(v.Contracts) != 1 {
			t.Errorf("got %d contract entries, want 1", len(v.Contracts))
		}
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	client := New(server.URL)
	v := Verification{
		Contracts: []ContractVerification{{
			ContractName: "Token",
			Networks:     map[string]NetworkAddress{"1": {Address: "0xabc", Links: map[string]string{}}},
		}},
	}
	if err := client.VerifyContracts(context.Background(), v); err != nil {
		t.Fatalf("VerifyContracts() error = %v", err)
	}
}

func TestClient_AddToProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/alice/project/first/address" {
			t.Errorf("Expected path /account/alice/project/first/address, got %s", r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body["network_id"] != "1" || body["address"] != "0xabc" {
			t.Errorf("unexpected body: %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL)
	ref := ProjectRef{Username: "alice", Slug: "first"}
	if err := client.AddToProject(context.Background(), ref, "1", "0xabc"); err != nil {
		t.Fatalf("AddToProject() error = %v", err)
	}
}

func TestClient_Contract_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"slug": "resource_not_found", "message": "contract not found"},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	ref := ProjectRef{Username: "alice", Slug: "first"}
	_, err := client.Contract(context.Background(), ref, "1", "0xabc")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Contract() error = %v, want ErrNotFound", err)
	}
}

func TestClient_Billing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/alice/project/first/billing" {
			t.Errorf("Expected path /account/alice/project/first/billing, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"includes": map[string]bool{"private_contracts": true},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	billing, err := client.Billing(context.Background(), ProjectRef{Username: "alice", Slug: "first"})
	if err != nil {
		t.Fatalf("Billing() error = %v", err)
	}
	if !billing.Includes.PrivateContracts {
		t.Error("Billing().Includes.PrivateContracts = false, want true")
	}
}
