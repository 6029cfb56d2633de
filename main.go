package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/credits/cmd"
	"github.com/mezonai/credits/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("LEDGER NODE CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
