// Package drivalyze keeps a cascading vehicle selection form (brand, model,
// fuel type, year, transmission) consistent while option lists arrive from a
// catalog service out of order.
//
// The core is the pure reducer Reduce, which turns a State and an Event into
// the next State plus the Effects (fetches, predictions) the caller must run.
// Every fetch is tagged with a per-field epoch; responses carrying an older
// epoch are discarded, so a slow answer for a brand the user already left can
// never overwrite the options of the current brand.
//
// Resolver drives the reducer against real collaborators: a Fetcher for
// option lists, a Predictor for price estimates and an optional Recorder that
// persists successful predictions without blocking the caller.
package drivalyze
