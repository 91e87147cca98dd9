// Package main hosts the dcmorg CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, applies flag
// overrides, runs preflight checks for the requested stage and then hands
// off to the organizer, converter and segmenter packages. Keep stage logic
// in internal/; commands here only wire and render.
package main
