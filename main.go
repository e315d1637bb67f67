package main

import (
	"os"

	"github.com/tanpawarit/chative-bank-onboarding/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
