// Package pipeline executes contract scan steps in sequence.
//
// A scan fetches the verified source from the chain's explorer, scores it
// with the static analyzer and then queries the chain over JSON-RPC. Each
// stage is a Step that receives the report and fills in its part.
//
// BatchProcessor runs one pipeline per target with bounded concurrency
// using errgroup.
package pipeline
