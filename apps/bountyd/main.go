package main

import "github.com/lnbounty/bounty-api/apps/bountyd/cmd"

func main() {
	cmd.Execute()
}
