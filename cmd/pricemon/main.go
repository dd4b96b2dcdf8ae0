package main

import "price-frame-monitor/internal/cli"

func main() {
	cli.Execute()
}
