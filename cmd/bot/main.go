package main

import (
	"os"

	"binance-backtest-bot-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
