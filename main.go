package main

import (
	"os"

	"github.com/HSouheill/partner_marketplace/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
