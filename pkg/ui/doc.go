// Package ui holds the console output of the tcgsync CLI: colored status
// lines, the live progress line of a sync run and go-pretty summary tables.
package ui
