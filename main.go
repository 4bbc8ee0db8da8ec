package main

import "github.com/wormholelabs-xyz/wormhole-svm-test/cmd"

func main() {
	cmd.Execute()
}
