//go:build !js_eval

package rules

var compileJS compiler
