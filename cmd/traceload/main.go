package main

import (
	"github.com/Adithya-Monish-Kumar-K/traceload/cmd/traceload/cmd"
)

func main() {
	cmd.Execute()
}
