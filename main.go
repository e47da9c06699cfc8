package main

import (
	"github.com/AzielCF/az-guard/cmd"
)

func main() {
	cmd.Execute()
}
