// Command analyticsctl runs operational tasks against the analytics
// database: schema migrations, admin token minting and terminal reports.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
