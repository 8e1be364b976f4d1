package main

import "github.com/lnbounty/bounty-api/apps/bountyctl/cmd"

func main() {
	cmd.Execute()
}
