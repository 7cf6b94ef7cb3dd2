// Package rule defines the typed rule model and the parse step that turns
// untyped repository attribute records into immutable Rule values.
//
// Storage stays loosely typed (Record + Field bags); evaluation is strongly
// typed. ParseRule is the only bridge between the two layers, and Encode is
// its inverse for seeding repositories from typed rules.
package rule
