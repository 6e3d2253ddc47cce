// Command outlook serves and maintains the reconciled 27-day solar outlook.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
