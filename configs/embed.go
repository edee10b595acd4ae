// Package configs provides embedded configuration templates.
//
// Templates are embedded at build time with go:embed so they ship in
// every distribution. 'sentinel init' writes them into the data
// directory as starting points for a real deployment.
package configs

import _ "embed"

// ConfigTemplate is the annotated sentinel.yaml starting point written
// by 'sentinel init'.
//
//go:embed sentinel.example.yaml
var ConfigTemplate string

// MatrixTemplate is an example access matrix. Every deployment must
// replace it with its own grants: anything not listed here is denied.
//
//go:embed matrix.example.yaml
var MatrixTemplate string
