// Package interp embeds the fixed interpreter program that runs inside every
// view. The Go side only ever hands it encoded action messages.
package interp

import _ "embed"

// Source defines installInterpreter(host), which returns an object with
// execute(payload), held() and state().
//
//go:embed interpreter.js
var Source string

//go:embed browser.js
var browser string

// Install is the global the interpreter source defines.
const Install = "installInterpreter"

// Browser returns the script served to remote pages: the interpreter plus the
// bootstrap that connects the page to the hub.
func Browser() string {
	return Source + "\n" + browser
}
