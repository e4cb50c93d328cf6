// Package public holds the browser collector served to tracked sites.
package public

import _ "embed"

//go:embed tracker.js
var TrackerJS []byte
