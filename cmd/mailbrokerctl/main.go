// Command mailbrokerctl is the operator CLI for a running mailbroker service.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
