// Command pooledstress runs randomized workloads against the pooled
// containers and reports what they allocated.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
