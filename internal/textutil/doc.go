// Package textutil provides text helpers for output naming: `{placeholder}`
// template expansion, filename sanitization, and human-readable titles
// derived from file stems.
package textutil
