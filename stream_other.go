//go:build !linux

package dsv

import "os"

func advise(*os.File) {}
