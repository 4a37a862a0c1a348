package main

import (
	"github.com/ColonelBlimp/luminar/cmd"
	"github.com/ColonelBlimp/luminar/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
