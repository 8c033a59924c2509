//go:build windows

package main

import "os"

// terminationSignals stop the server gracefully (Ctrl+C).
var terminationSignals = []os.Signal{os.Interrupt}
