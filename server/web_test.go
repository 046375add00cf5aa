package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/janelia-flyem/trainlabels/config"
	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/storage"
	"github.com/janelia-flyem/trainlabels/volume"
)

const testConfig = `
[store]
compression = "snappy"

[server]
cors_domains = ["*"]

[[transform]]
type = "boundary"
source = "label"
target = "boundary"

[[transform]]
type = "object_instance"
source = "label"
target = "object"
`

func openTest(t *testing.T, content string) (*Server, storage.SampleStore) {
	c, err := config.Decode(content, "/tmp")
	if err != nil {
		t.Fatalf("decode config: %v\n", err)
	}
	codec, err := c.Store.Codec()
	if err != nil {
		t.Fatalf("codec: %v\n", err)
	}
	store, err := storage.OpenBucketStore(context.Background(), "mem://", codec)
	if err != nil {
		t.Fatalf("open store: %v\n", err)
	}
	t.Cleanup(func() { store.Close() })
	s, err := New(c, store)
	if err != nil {
		t.Fatalf("new server: %v\n", err)
	}
	return s, store
}

// testHTTP sends a request to the server and returns the response body after
// checking the status.
func testHTTP(t *testing.T, s http.Handler, method, url string, payload io.Reader, header http.Header, status int) []byte {
	req := httptest.NewRequest(method, url, payload)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != status {
		t.Fatalf("%s %s: expected status %d, got %d: %s\n", method, url, status, w.Code, w.Body.String())
	}
	return w.Body.Bytes()
}

func slabPayload(t *testing.T, id string) *bytes.Buffer {
	lbl := volume.New(4, 4, 4)
	for i := range lbl.Data {
		lbl.Data[i] = float64(i/32 + 1)
	}
	s := sample.New(id)
	if err := s.Set("label", lbl); err != nil {
		t.Fatalf("set: %v\n", err)
	}
	b, err := sample.Codec{Compression: dvid.Snappy}.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v\n", err)
	}
	return bytes.NewBuffer(b)
}

func TestHelpAndInfo(t *testing.T) {
	s, _ := openTest(t, testConfig)
	help := testHTTP(t, s, "GET", "/api/help", nil, nil, http.StatusOK)
	if !strings.Contains(string(help), "POST /api/apply") {
		t.Errorf("help lacks apply endpoint: %s\n", help)
	}
	body := testHTTP(t, s, "GET", "/api/server/info", nil, nil, http.StatusOK)
	var info map[string]interface{}
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("bad info JSON %s: %v\n", body, err)
	}
	if info["version"] != dvid.Version || info["compression"] != "snappy" {
		t.Errorf("unexpected info: %s\n", body)
	}
	if !strings.Contains(string(body), `"types":["boundary","object_instance"]`) {
		t.Errorf("info lacks pipeline: %s\n", body)
	}
	testHTTP(t, s, "GET", "/api/nosuch", nil, nil, http.StatusNotFound)
}

func TestApply(t *testing.T) {
	s, store := openTest(t, testConfig)
	body := testHTTP(t, s, "POST", "/api/apply?object_id=2", slabPayload(t, "s1"), nil, http.StatusOK)
	out, err := sample.Codec{}.Unmarshal(body)
	if err != nil {
		t.Fatalf("decode response: %v\n", err)
	}
	if out.ID != "s1" {
		t.Errorf("expected sample id s1, got %s\n", out.ID)
	}
	for _, key := range []string{"label", "boundary", "boundary_mask", "object", "object_mask"} {
		if !out.Has(key) {
			t.Errorf("response lacks %q: %s\n", key, out)
		}
	}
	if obj, _ := out.Get("object"); obj.Sum() != 32 {
		t.Errorf("object 2 should cover 32 voxels, got %f\n", obj.Sum())
	}

	// missing source key and bad parameters are client errors
	empty := sample.New("empty")
	b, _ := sample.Codec{}.Marshal(empty)
	testHTTP(t, s, "POST", "/api/apply", bytes.NewBuffer(b), nil, http.StatusBadRequest)
	testHTTP(t, s, "POST", "/api/apply?object_id=two", slabPayload(t, "s1"), nil, http.StatusBadRequest)
	testHTTP(t, s, "POST", "/api/apply", strings.NewReader("not msgpack"), nil, http.StatusBadRequest)

	ids, _ := store.SampleIDs(context.Background())
	if len(ids) != 0 {
		t.Errorf("apply without store=true should not store, got %v\n", ids)
	}
}

func TestStoreRoutes(t *testing.T) {
	s, _ := openTest(t, testConfig)
	body := testHTTP(t, s, "POST", "/api/apply?object_id=1&store=true", slabPayload(t, "kept"), nil, http.StatusOK)
	var resp map[string]string
	if err := json.Unmarshal(body, &resp); err != nil || resp["id"] != "kept" {
		t.Fatalf("unexpected store response %s: %v\n", body, err)
	}

	body = testHTTP(t, s, "GET", "/api/samples", nil, nil, http.StatusOK)
	if strings.TrimSpace(string(body)) != `["kept"]` {
		t.Errorf("unexpected sample list %s\n", body)
	}
	body = testHTTP(t, s, "GET", "/api/sample/kept", nil, nil, http.StatusOK)
	got, err := sample.Codec{}.Unmarshal(body)
	if err != nil {
		t.Fatalf("decode stored sample: %v\n", err)
	}
	if !got.Has("object") || !got.Has("boundary") {
		t.Errorf("stored sample lacks outputs: %s\n", got)
	}

	testHTTP(t, s, "DELETE", "/api/sample/kept", nil, nil, http.StatusOK)
	testHTTP(t, s, "GET", "/api/sample/kept", nil, nil, http.StatusNotFound)
	testHTTP(t, s, "DELETE", "/api/sample/kept", nil, nil, http.StatusNotFound)
	body = testHTTP(t, s, "GET", "/api/samples", nil, nil, http.StatusOK)
	if strings.TrimSpace(string(body)) != `[]` {
		t.Errorf("expected empty sample list, got %s\n", body)
	}
}

func TestNoStore(t *testing.T) {
	c, err := config.Decode(testConfig, "/tmp")
	if err != nil {
		t.Fatalf("decode config: %v\n", err)
	}
	s, err := New(c, nil)
	if err != nil {
		t.Fatalf("new server: %v\n", err)
	}
	testHTTP(t, s, "GET", "/api/samples", nil, nil, http.StatusBadRequest)
	testHTTP(t, s, "POST", "/api/apply?store=true", slabPayload(t, "x"), nil, http.StatusBadRequest)
	body := testHTTP(t, s, "GET", "/api/server/info", nil, nil, http.StatusOK)
	if !strings.Contains(string(body), `"store":"none"`) {
		t.Errorf("info should report no store: %s\n", body)
	}
}

func TestPostPipeline(t *testing.T) {
	s, _ := openTest(t, testConfig)
	pipeline := `[
		{"type": "segmentation", "source": "label", "target": "seg"},
		{"type": "affinity", "source": "seg", "target": "aff", "dst": [[0, 0, 1], [0, 1, 0], [1, 0, 0]]}
	]`
	body := testHTTP(t, s, "POST", "/api/pipeline", strings.NewReader(pipeline), nil, http.StatusOK)
	if !strings.Contains(string(body), `"types":["segmentation","affinity"]`) {
		t.Errorf("unexpected pipeline response %s\n", body)
	}
	body = testHTTP(t, s, "POST", "/api/apply", slabPayload(t, "p"), nil, http.StatusOK)
	out, err := sample.Codec{}.Unmarshal(body)
	if err != nil {
		t.Fatalf("decode: %v\n", err)
	}
	aff, found := out.Get("aff")
	if !found || !aff.SameShape(volume.New(3, 4, 4, 4)) {
		t.Errorf("expected (3,4,4,4) affinity in %s\n", out)
	}

	testHTTP(t, s, "POST", "/api/pipeline", strings.NewReader(`[{"type": "affinity", "source": "a", "target": "b"}]`), nil, http.StatusBadRequest)
	testHTTP(t, s, "POST", "/api/pipeline", strings.NewReader(`[{"type": "semantic", "source": "a", "target": "b", "ids": []}]`), nil, http.StatusBadRequest)
	if got := strings.Join(s.Pipeline().Types(), ","); got != "segmentation,affinity" {
		t.Errorf("rejected pipelines should not replace the served one, have %s\n", got)
	}
}

func TestAuthorization(t *testing.T) {
	s, _ := openTest(t, testConfig+"\n[auth]\nsecret_key = \"sshh\"\n")
	testHTTP(t, s, "GET", "/api/help", nil, nil, http.StatusOK)
	testHTTP(t, s, "GET", "/api/samples", nil, nil, http.StatusUnauthorized)

	token, err := GenerateJWT("sshh", "someone", 1)
	if err != nil {
		t.Fatalf("generate token: %v\n", err)
	}
	good := http.Header{"Authorization": []string{"Bearer " + token}}
	testHTTP(t, s, "GET", "/api/samples", nil, good, http.StatusOK)

	other, _ := GenerateJWT("other key", "someone", 1)
	bad := http.Header{"Authorization": []string{"Bearer " + other}}
	testHTTP(t, s, "GET", "/api/samples", nil, bad, http.StatusUnauthorized)
	expired, _ := GenerateJWT("sshh", "someone", -1)
	bad = http.Header{"Authorization": []string{"Bearer " + expired}}
	testHTTP(t, s, "GET", "/api/samples", nil, bad, http.StatusUnauthorized)
	bad = http.Header{"Authorization": []string{token}}
	testHTTP(t, s, "GET", "/api/samples", nil, bad, http.StatusUnauthorized)

	if _, err := GenerateJWT("", "someone", 1); err == nil {
		t.Errorf("expected error generating token without a key\n")
	}
}

func TestRequestsGate(t *testing.T) {
	s, _ := openTest(t, testConfig)
	dvid.DenyRequests()
	defer dvid.AllowRequests()
	testHTTP(t, s, "GET", "/api/server/info", nil, nil, http.StatusServiceUnavailable)
	dvid.AllowRequests()
	testHTTP(t, s, "GET", "/api/server/info", nil, nil, http.StatusOK)
}
