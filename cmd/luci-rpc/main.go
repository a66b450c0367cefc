package main

import "luci-rpc/internal/cli"

func main() {
	cli.Execute()
}
