package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"nfc.app/facilitator/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
