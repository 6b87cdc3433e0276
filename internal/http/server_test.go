package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rulereg/pkg/cluster"
	"rulereg/pkg/query"
	"rulereg/pkg/record"
	"rulereg/pkg/registry"
	"rulereg/pkg/shard"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry, *httptest.Server) {
	t.Helper()
	reg := registry.New("node-1", record.NewResolver(record.LastWriteWins))
	s := NewServer(reg, "")
	ts := httptest.NewServer(s.createRouter())
	t.Cleanup(ts.Close)
	return s, reg, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, contentTypeJSON, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestServer_Health(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_AddGetUpdate(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/rules", addRequest{Key: "r1", Body: json.RawMessage(`"v1"`)})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d", resp.StatusCode)
	}

	// duplicate add conflicts
	resp = postJSON(t, ts.URL+"/api/rules", addRequest{Key: "r1", Body: json.RawMessage(`"v2"`)})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate add: expected 409, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/rules/r1", bytes.NewReader([]byte(`"v2"`)))
	putResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	putResp.Body.Close()
	if putResp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", putResp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/api/rules/r1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer getResp.Body.Close()
	var out Response
	if err := json.NewDecoder(getResp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out.Value) != `"v2"` {
		t.Fatalf("expected v2, got %s", out.Value)
	}
}

func TestServer_UpdateMissingKeyIs404(t *testing.T) {
	_, _, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/rules/ghost", bytes.NewReader([]byte(`"v"`)))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestServer_GossipRoundTrip(t *testing.T) {
	_, reg, ts := newTestServer(t)

	incoming := record.New("r1", json.RawMessage(`"remote"`), "node-2")
	resp := postJSON(t, ts.URL+"/gossip/records", incoming)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("push: expected 200, got %d", resp.StatusCode)
	}
	if got, _ := reg.Get("r1"); string(got) != `"remote"` {
		t.Fatalf("pushed record not merged, got %s", got)
	}

	pullResp, err := http.Get(ts.URL + "/gossip/records")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	defer pullResp.Body.Close()
	var recs []*record.Record
	if err := json.NewDecoder(pullResp.Body).Decode(&recs); err != nil {
		t.Fatalf("decode pull: %v", err)
	}
	if len(recs) != 1 || recs[0].Key != "r1" {
		t.Fatalf("unexpected pull payload: %+v", recs)
	}
	if recs[0].Clock.Get("node-2") != 1 {
		t.Fatalf("clock lost in transit: %s", recs[0].Clock)
	}
}

func TestServer_GossipPushManualConflictIs409(t *testing.T) {
	reg := registry.New("node-1", record.NewResolver(record.Manual))
	s := NewServer(reg, "")
	ts := httptest.NewServer(s.createRouter())
	defer ts.Close()

	if err := reg.AddLocal("r1", json.RawMessage(`"local"`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	incoming := record.New("r1", json.RawMessage(`"remote"`), "node-2")
	resp := postJSON(t, ts.URL+"/gossip/records", incoming)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for unresolved conflict, got %d", resp.StatusCode)
	}
	if got, _ := reg.Get("r1"); string(got) != `"local"` {
		t.Fatal("local record must survive an unresolved conflict")
	}
}

func TestServer_ClusterList(t *testing.T) {
	reg := registry.New("node-1", record.NewResolver(record.LastWriteWins))
	if err := reg.AddLocal("r1", json.RawMessage(`"v"`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	m := shard.NewMap(shard.NewRouter(2))
	if err := m.Assign(0, cluster.NewLocalHandle("node-1", reg)); err != nil {
		t.Fatal(err)
	}
	// shard 1 unowned: the listing must still answer with partial metadata

	s := NewServer(reg, "").WithCoordinator(query.New(m, time.Second))
	ts := httptest.NewServer(s.createRouter())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/cluster/rules")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out clusterListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out.Records))
	}
	if len(out.Missing) != 1 || out.Missing[0] != 1 {
		t.Fatalf("expected shard 1 reported missing, got %v", out.Missing)
	}
}
