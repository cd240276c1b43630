//go:build !dsvdebug

package dsv

const debugChecks = false
