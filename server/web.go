package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/trainlabels/config"
	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/storage"
	"github.com/janelia-flyem/trainlabels/transform"
	"github.com/janelia-flyem/trainlabels/volume"
)

// MaxBodyBytes limits the size of posted samples and pipelines.
const MaxBodyBytes = 4 * dvid.Giga

const webHelp = `
trainlabels HTTP API

GET  /api/help
	Returns this help.

GET  /api/server/info
	Returns JSON with versions, the served pipeline and the sample store.

POST /api/pipeline
	Replaces the served pipeline.  The body is a JSON array of transform
	descriptions, each like a [[transform]] configuration section, e.g.,
	[{"type": "affinity", "source": "label", "target": "affinity", "dst": [[0,0,1],[0,1,0],[1,0,0]]}]

POST /api/apply[?object_id=<id>][&store=true]
	Applies the served pipeline to the msgpack sample in the body.  Returns the
	resulting msgpack sample or, if "store" is true, stores it and returns JSON
	{"id": <sample id>}.  The object_id picks the object for object_instance
	transforms.

GET  /api/samples
	Returns a JSON list of the stored sample IDs.

GET  /api/sample/<id>
	Returns a stored msgpack sample.

DELETE /api/sample/<id>
	Deletes a stored sample.
`

// BadRequest writes a 400 error with the formatted message and logs it.
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	httpError(w, r, http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// Unauthorized writes a 401 error with the formatted message and logs it.
func Unauthorized(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	httpError(w, r, http.StatusUnauthorized, fmt.Sprintf(format, args...))
}

func httpError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	errorMsg := fmt.Sprintf("%s (%s).", msg, r.URL)
	dvid.Errorf("%s\n", errorMsg)
	http.Error(w, errorMsg, status)
}

// errorStatus maps an error to the HTTP status it is reported with.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, transform.ErrConfig), errors.Is(err, volume.ErrShape), errors.Is(err, sample.ErrMissingKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpError(w, r, errorStatus(err), err.Error())
}

func writeJSON(w http.ResponseWriter, r *http.Request, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		dvid.Errorf("unable to write JSON for %s: %v\n", r.URL, err)
	}
}

func requestsGate(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if !dvid.RequestsOK() {
			httpError(w, r, http.StatusServiceUnavailable, "server is not accepting requests")
			return
		}
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, webHelp)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	httpError(w, r, http.StatusNotFound, "no such endpoint; see /api/help")
}

type pipelineInfo struct {
	Types   []string `json:"types"`
	Targets []string `json:"targets"`
}

func describePipeline(p *transform.Pipeline) pipelineInfo {
	return pipelineInfo{Types: p.Types(), Targets: p.Targets()}
}

func (s *Server) serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	info := struct {
		Version       string       `json:"version"`
		FormatVersion string       `json:"format_version"`
		Transforms    []string     `json:"transforms"`
		Pipeline      pipelineInfo `json:"pipeline"`
		Store         string       `json:"store"`
		Compression   string       `json:"compression"`
	}{
		Version:       dvid.Version,
		FormatVersion: dvid.FormatVersion.String(),
		Transforms:    transform.CompiledTypes(),
		Pipeline:      describePipeline(s.Pipeline()),
		Store:         "none",
		Compression:   s.codec.Compression.String(),
	}
	if s.store != nil {
		info.Store = s.store.String()
	}
	writeJSON(w, r, info)
}

func (s *Server) pipelineHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		BadRequest(w, r, "unable to read pipeline: %v", err)
		return
	}
	configs, err := config.ParsePipelineJSON(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := transform.NewPipelineFromConfigs(configs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.SetPipeline(p)
	writeJSON(w, r, describePipeline(p))
}

func (s *Server) applyHandler(w http.ResponseWriter, r *http.Request) {
	timedLog := dvid.NewTimeLog()
	query := r.URL.Query()
	var params transform.Params
	if idStr := query.Get("object_id"); idStr != "" {
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			BadRequest(w, r, "bad object_id %q: %v", idStr, err)
			return
		}
		params.ObjectID = &id
	}
	store := query.Get("store") == "true"
	if store && s.store == nil {
		BadRequest(w, r, "no sample store configured")
		return
	}

	in, err := s.codec.Decode(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		BadRequest(w, r, "unable to decode posted sample: %v", err)
		return
	}
	out, err := s.Pipeline().Apply(in, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if store {
		if err := s.store.PutSample(r.Context(), out); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, map[string]string{"id": out.ID})
	} else {
		w.Header().Set("Content-Type", sample.ContentType)
		if err := s.codec.Encode(w, out); err != nil {
			dvid.Errorf("unable to write sample %s: %v\n", out.ID, err)
			return
		}
	}
	timedLog.Infof("HTTP %s: %s (%s)", r.Method, r.URL, out)
}

func (s *Server) checkStore(w http.ResponseWriter, r *http.Request) bool {
	if s.store == nil {
		BadRequest(w, r, "no sample store configured")
		return false
	}
	return true
}

func (s *Server) samplesHandler(w http.ResponseWriter, r *http.Request) {
	if !s.checkStore(w, r) {
		return
	}
	ids, err := s.store.SampleIDs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, r, ids)
}

func (s *Server) getSampleHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	if !s.checkStore(w, r) {
		return
	}
	smp, err := s.store.GetSample(r.Context(), c.URLParams["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", sample.ContentType)
	if err := s.codec.Encode(w, smp); err != nil {
		dvid.Errorf("unable to write sample %s: %v\n", smp.ID, err)
	}
}

func (s *Server) deleteSampleHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	if !s.checkStore(w, r) {
		return
	}
	id := c.URLParams["id"]
	if err := s.store.DeleteSample(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	dvid.Infof("Deleted sample %s\n", id)
	w.WriteHeader(http.StatusOK)
}
