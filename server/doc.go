/*
Package server provides the trainlabels HTTP API: a goji mux that applies the
served transform pipeline to posted samples and stores, lists, fetches and
deletes samples in the configured sample store.

	GET  /api/help
	GET  /api/server/info
	POST /api/pipeline
	POST /api/apply?object_id=<id>&store=true
	GET  /api/samples
	GET  /api/sample/<id>
	DELETE /api/sample/<id>

Samples travel as msgpack (Content-Type application/x-msgpack).  If the [auth]
section holds a secret key, every route except help requires a JWT given as
"Authorization: Bearer <token>".
*/
package server
