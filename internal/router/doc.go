// Package router implements the headless client-side router.
//
// A navigation runs through these phases:
//
//	Idle -> Resolving -> Guarded -> Redirecting
//	                  -> Loading  -> Committed
//	                  -> Aborted
//
// Resolving turns a URL path into a route: base path and query string are
// stripped, the last segment becomes the slug, and the slug is looked up in
// the Table (exact match first, then ":param" patterns, then a synthesized
// "slug/slug" view guess).
//
// Loading builds the view from the Registry and, when the route declares a
// Loader, fetches its data through store.Query. Every navigation owns a
// cancellable context; starting a new navigation cancels the previous one.
// A cancelled navigation exits silently and never writes to the store.
//
// Loading failures recover by showing the not-found view. If the not-found
// view itself cannot be built the router enters the terminal Panicked phase
// and asks the Document to replace its output with a static message.
//
// Browser capabilities (history, viewport, focus, view transitions) are
// injected interfaces, so the router runs and is tested without a DOM.
package router
