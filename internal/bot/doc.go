// Package bot routes decoded Bot API updates to handlers.
//
// Updates are decoded once into an Envelope carrying one Event variant
// (Command, FileUpload, Text or Callback). The Router picks exactly one route
// per envelope, first match wins, evaluates that route's guard chain (admin
// allow-list, then forced subscription) and runs the handler. Handlers talk
// to the catalog, the ingestion machine, the subscription gate and the
// delivery sequencer through the interfaces in Deps.
package bot
