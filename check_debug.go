//go:build dsvdebug

package dsv

// debugChecks enables SeverityCheck assertions.
const debugChecks = true
