package main

import "wallet-engine/cmd/wallet-cli/cmd"

func main() {
	cmd.Execute()
}
