// Package server serves the penguins dashboard over HTTP and WebSocket.
//
// A page load creates or resumes a dashboard session and renders every
// output into the page. The browser then opens /ws?sid=<id>, receives a
// full patch, and sends input, grid and ping frames:
//
//	{"type":"input","field":"plotly_bin_count","value":20}
//	{"type":"grid","page":1,"sort":"body_mass_g","desc":true}
//	{"type":"ping"}
//
// Each accepted change is answered with a patch holding only the outputs
// that were redrawn:
//
//	{"type":"patch","seq":4,"outputs":{"plot1":"<svg ...>"}}
//
// Rejected frames get an error frame carrying the error code and the
// offending field. The same operations are exposed as a JSON API under
// /api for clients without a WebSocket.
//
// The Manager owns live sessions. It evicts idle ones and keeps their
// inputs in a store so a reconnecting client gets its selections back.
package server
